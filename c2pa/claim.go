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

package c2pa

import "github.com/faceless2/json/node"

// HashedURI is one entry of a claim's assertions list: a JUMBF URI and the
// digest of the super-box it resolves to, per §4.9 step 4.
type HashedURI struct {
	URL  string
	Hash []byte
	Alg  string
}

// Claim is the decoded payload of a jumb/c2cl box.
type Claim struct {
	Format      string
	InstanceID  string
	Generator   string
	Alg         string
	Assertions  []HashedURI
	SignatureURI string
}

// DefaultAlg is the default hash algorithm a claim uses when none is set
// (§4.9 precondition 1).
const DefaultAlg = "sha256"

// DefaultGenerator is the fallback claim_generator string.
const DefaultGenerator = "faceless2/json c2pa"

// ToNode renders the claim to its CBOR map shape.
func (c *Claim) ToNode() *node.Node {
	m := node.NewMap()
	m.SetChild("dc:format", node.NewString(c.Format))
	m.Put("instanceID", node.NewString(c.InstanceID))
	m.Put("claim_generator", node.NewString(c.Generator))
	m.Put("alg", node.NewString(c.Alg))
	assertions := node.NewList()
	for _, a := range c.Assertions {
		am := node.NewMap()
		am.Put("url", node.NewString(a.URL))
		if len(a.Hash) > 0 {
			am.Put("hash", node.NewBuffer(a.Hash))
		}
		if a.Alg != "" {
			am.Put("alg", node.NewString(a.Alg))
		}
		assertions.AppendChild(am)
	}
	m.Put("assertions", assertions)
	if c.SignatureURI != "" {
		m.Put("signature", node.NewString(c.SignatureURI))
	}
	return m
}

// ClaimFromNode parses a claim CBOR map.
func ClaimFromNode(n *node.Node) (*Claim, error) {
	c := &Claim{}
	if v, ok := n.Child("dc:format"); ok {
		c.Format, _ = v.StringValue()
	}
	if v, _ := n.Get("instanceID"); v != nil {
		c.InstanceID, _ = v.StringValue()
	}
	if v, _ := n.Get("claim_generator"); v != nil {
		c.Generator, _ = v.StringValue()
	}
	if v, _ := n.Get("alg"); v != nil {
		c.Alg, _ = v.StringValue()
	}
	if v, _ := n.Get("signature"); v != nil {
		c.SignatureURI, _ = v.StringValue()
	}
	if v, _ := n.Get("assertions"); v != nil {
		for i := 0; i < v.Len(); i++ {
			e, _ := v.Index(i)
			a := HashedURI{}
			if x, _ := e.Get("url"); x != nil {
				a.URL, _ = x.StringValue()
			}
			if x, _ := e.Get("hash"); x != nil {
				a.Hash, _ = x.BufferValue()
			}
			if x, _ := e.Get("alg"); x != nil {
				a.Alg, _ = x.StringValue()
			}
			c.Assertions = append(c.Assertions, a)
		}
	}
	return c, nil
}
