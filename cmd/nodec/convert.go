// Copyright 2021 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/jsonio"
	"github.com/faceless2/json/msgpackio"
	"github.com/faceless2/json/node"
)

func readTree(data []byte, format string) (*node.Node, error) {
	switch format {
	case "json":
		return jsonio.ReadNode(bytes.NewReader(data), jsonio.ReaderOptions{})
	case "cbor":
		return cborio.Unmarshal(data, cborio.ReaderOptions{})
	case "msgpack":
		return msgpackio.Unmarshal(data, msgpackio.ReaderOptions{})
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func writeTree(w io.Writer, n *node.Node, format string, pretty bool) error {
	switch format {
	case "json":
		return jsonio.WriteNode(w, n, jsonio.WriterOptions{}.WithPretty(pretty))
	case "cbor":
		out, err := cborio.Marshal(n, cborio.WriterOptions{})
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "msgpack":
		out, err := msgpackio.Marshal(n, msgpackio.WriterOptions{})
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newConvertCmd() *cobra.Command {
	var from, to, outPath string
	var pretty bool
	cmd := &cobra.Command{
		Use:   "convert <input-file|->",
		Short: "Convert a value tree between JSON, CBOR and MsgPack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			tree, err := readTree(data, from)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", from, err)
			}
			out := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating output: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeTree(out, tree, to, pretty); err != nil {
				return fmt.Errorf("encoding %s: %w", to, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "json", "Input format: json, cbor, msgpack")
	cmd.Flags().StringVar(&to, "to", "cbor", "Output format: json, cbor, msgpack")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file, or - for stdout")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "inspect <input-file|->",
		Short: "Decode a value tree and print it as pretty JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			tree, err := readTree(data, from)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", from, err)
			}
			return jsonio.WriteNode(cmd.OutOrStdout(), tree, jsonio.WriterOptions{}.WithPretty(true))
		},
	}
	cmd.Flags().StringVar(&from, "from", "cbor", "Input format: json, cbor, msgpack")
	return cmd
}
