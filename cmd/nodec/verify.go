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
	"os"

	"github.com/spf13/cobra"

	"github.com/faceless2/json/box"
	"github.com/faceless2/json/c2pa"
	"github.com/faceless2/json/cose"
	"github.com/faceless2/json/jsonio"
)

func newVerifyCmd() *cobra.Command {
	var keyPath string
	cmd := &cobra.Command{
		Use:   "verify <manifest-file> <asset-file>",
		Short: "Verify a C2PA manifest against its asset and print a status report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestBytes, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}
			assetBytes, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading asset: %w", err)
			}
			boxes, err := box.ParseAll(manifestBytes)
			if err != nil {
				return fmt.Errorf("parsing manifest boxes: %w", err)
			}
			if len(boxes) == 0 {
				return fmt.Errorf("manifest file contains no boxes")
			}
			store, err := c2pa.OpenStore(boxes[0])
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}

			var pub interface{}
			if keyPath != "" {
				data, err := os.ReadFile(keyPath)
				if err != nil {
					return fmt.Errorf("reading key: %w", err)
				}
				tree, err := jsonio.ReadNode(bytes.NewReader(data), jsonio.ReaderOptions{})
				if err != nil {
					return fmt.Errorf("parsing key file: %w", err)
				}
				jwk, err := cose.JWKFromNode(tree)
				if err != nil {
					return fmt.Errorf("parsing jwk: %w", err)
				}
				if pub, err = jwk.ECPublicKey(); err != nil {
					return fmt.Errorf("deriving public key: %w", err)
				}
			}

			results, err := c2pa.Verify(store, c2pa.VerifyOptions{
				Asset:    bytes.NewReader(assetBytes),
				AssetLen: int64(len(assetBytes)),
				Key:      pub,
			})
			if err != nil {
				return fmt.Errorf("verifying: %w", err)
			}
			allOK := c2pa.AllOK(results)
			for _, r := range results {
				status := "OK"
				if !r.OK {
					status = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %-40s %s\n", status, r.Code, r.Message)
			}
			if !allOK {
				return fmt.Errorf("manifest verification failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "Path to the signer's public JWK; required unless the cert chain embeds it")
	return cmd
}
