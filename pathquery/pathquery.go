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

// Package pathquery is an external-collaborator adapter: it evaluates
// gjson-style path queries against a value tree's serialized JSON form,
// rather than walking the tree itself. The node/event/codec core never
// imports this package; a caller wires it in when it wants path-query
// behaviour over a tree it already holds.
package pathquery

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/faceless2/json/jsonio"
	"github.com/faceless2/json/node"
)

func marshal(n *node.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := jsonio.WriteNode(&buf, n, jsonio.WriterOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Get evaluates a gjson path against n by round-tripping it through JSON
// text, returning the matched sub-tree or nil if the path has no match.
func Get(n *node.Node, path string) (*node.Node, error) {
	buf, err := marshal(n)
	if err != nil {
		return nil, err
	}
	result := gjson.GetBytes(buf, path)
	if !result.Exists() {
		return nil, nil
	}
	return jsonio.ReadNode(bytes.NewReader([]byte(result.Raw)), jsonio.ReaderOptions{})
}

// Set evaluates an sjson path against n, returning a new tree with the
// path's value replaced (or created). n itself is not mutated.
func Set(n *node.Node, path string, value interface{}) (*node.Node, error) {
	buf, err := marshal(n)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(buf, path, value)
	if err != nil {
		return nil, err
	}
	return jsonio.ReadNode(bytes.NewReader(out), jsonio.ReaderOptions{})
}

// Delete evaluates an sjson delete path against n, returning a new tree
// with the path removed.
func Delete(n *node.Node, path string) (*node.Node, error) {
	buf, err := marshal(n)
	if err != nil {
		return nil, err
	}
	out, err := sjson.DeleteBytes(buf, path)
	if err != nil {
		return nil, err
	}
	return jsonio.ReadNode(bytes.NewReader(out), jsonio.ReaderOptions{})
}

// Exists reports whether path has a match in n, without materializing a
// sub-tree for it.
func Exists(n *node.Node, path string) (bool, error) {
	buf, err := marshal(n)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(buf, path).Exists(), nil
}
