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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/faceless2/json/c2pa"
	"github.com/faceless2/json/cose"
	"github.com/faceless2/json/jsonio"
)

// loadOrCreateKey reads a signing JWK from keyPath, or generates and saves a
// fresh P-256 key there when keyPath does not yet exist.
func loadOrCreateKey(keyPath string) (*ecdsa.PrivateKey, error) {
	if data, err := os.ReadFile(keyPath); err == nil {
		tree, err := jsonio.ReadNode(bytes.NewReader(data), jsonio.ReaderOptions{})
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		jwk, err := cose.JWKFromNode(tree)
		if err != nil {
			return nil, fmt.Errorf("parsing jwk: %w", err)
		}
		return jwk.ECPrivateKey()
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jsonio.WriteNode(&buf, cose.FromECPrivateKey(priv).ToNode(), jsonio.WriterOptions{}.WithPretty(true)); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, buf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("saving generated key: %w", err)
	}
	return priv, nil
}

func newSignCmd() *cobra.Command {
	var keyPath, format, outPath, instanceID string
	cmd := &cobra.Command{
		Use:   "sign <asset-file>",
		Short: "Sign an asset with a single c2pa.hash.data hard binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading asset: %w", err)
			}
			priv, err := loadOrCreateKey(keyPath)
			if err != nil {
				return fmt.Errorf("loading key: %w", err)
			}
			if instanceID == "" {
				instanceID = uuid.NewString()
			}
			hardBinding := &c2pa.Assertion{
				Label:   c2pa.LabelHashData,
				Kind:    c2pa.KindHashData,
				Payload: (&c2pa.HashDataPayload{Alg: c2pa.DefaultAlg}).ToNode(),
			}
			req := &c2pa.SigningRequest{
				Format:     format,
				InstanceID: instanceID,
				Assertions: []*c2pa.Assertion{hardBinding},
				Asset:      bytes.NewReader(asset),
				AssetLen:   int64(len(asset)),
				KeyAlg:     "ES256",
				Key:        priv,
			}
			_, manifestBytes, err := c2pa.Sign(req)
			if err != nil {
				return fmt.Errorf("signing: %w", err)
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
			_, err = out.Write(manifestBytes)
			return err
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "nodec-key.json", "Path to a JWK private key file; generated if missing")
	cmd.Flags().StringVar(&format, "format", "application/octet-stream", "Claim dc:format")
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "Claim instanceID; defaults to a fresh UUID")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file for the encoded jumb/c2pa store, or - for stdout")
	return cmd
}
