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

// Package box implements the ISO base media file format box layout
// (ISO/IEC 14496-12) and the JUMBF super-box convention layered over it
// (ISO/IEC 19566-5), the container the C2PA manifest graph is embedded in.
package box

import (
	"sort"

	"github.com/faceless2/json/node"
)

// ContentKind discriminates how a box's payload is held in memory.
type ContentKind int

const (
	// ContentContainer boxes hold an ordered list of child boxes.
	ContentContainer ContentKind = iota
	// ContentCBOR boxes hold a value tree decoded from a CBOR payload.
	ContentCBOR
	// ContentJSON boxes hold a value tree decoded from a JSON payload.
	ContentJSON
	// ContentData boxes (and any box type this package doesn't specially
	// recognise) hold their payload as an opaque byte slice.
	ContentData
)

// ContainerTypes is the fixed registry of four-character box types that are
// recursively decoded as containers (§6.1). It is populated once at package
// init and must be treated as read-only afterwards.
var ContainerTypes = map[string]bool{}

func init() {
	for _, t := range []string{
		"moov", "trak", "edts", "mdia", "minf", "dinf", "stbl", "mp4a",
		"mvex", "moof", "traf", "mfra", "udta", "ipro", "sinf", "ilst",
		"jumb",
		// iTunes metadata atoms, themselves containers of a single "data" box.
		"\xa9nam", "\xa9ART", "\xa9alb", "\xa9day", "\xa9cmt", "\xa9gen",
		"covr", "trkn", "disk", "----",
	} {
		ContainerTypes[t] = true
	}
}

// IsContainerType reports whether t is in the fixed container registry.
func IsContainerType(t string) bool { return ContainerTypes[t] }

// Box is one node of the ISO-BMFF/JUMBF box tree (§3.3). Container boxes
// hold Children; cbor/json boxes hold Tree; every other recognised or
// unrecognised box holds Data. Padding is trailing bytes within the box's
// declared length that weren't consumed by its parsed payload, kept
// verbatim so that hashes computed over the re-encoded box match the
// original.
type Box struct {
	Type    string // four-character box type code, e.g. "jumb", "cbor"
	Subtype string // JUMBF content label, set on "jumb" boxes from their jumd child

	Kind ContentKind

	Children []*Box
	Tree     *node.Node
	Data     []byte

	Description *Description // parsed jumd payload, set only when Type == "jumd"

	Padding []byte

	parent *Box
}

// Parent returns the box's parent, or nil at the root.
func (b *Box) Parent() *Box { return b.parent }

// FirstChild returns the first child box, or nil if b has no children.
func (b *Box) FirstChild() *Box {
	if len(b.Children) == 0 {
		return nil
	}
	return b.Children[0]
}

// NextSibling returns the box immediately following b under its parent, or
// nil if b is last (or has no parent). Exposed for API fidelity with the
// first-child/next-sibling tree shape described in §3.3; Children is the
// practical way to iterate.
func (b *Box) NextSibling() *Box {
	if b.parent == nil {
		return nil
	}
	for i, c := range b.parent.Children {
		if c == b {
			if i+1 < len(b.parent.Children) {
				return b.parent.Children[i+1]
			}
			return nil
		}
	}
	return nil
}

// AppendChild adds child to a container box, setting its parent pointer.
// It is the caller's responsibility to ensure b.Kind == ContentContainer.
func (b *Box) AppendChild(child *Box) {
	child.parent = b
	b.Children = append(b.Children, child)
}

// ChildByLabel searches a jumb (JUMBF super-box)'s children for the one
// whose own description box carries the given label. JUMBF boxes other
// than the description box itself are ordinary child boxes of the
// super-box; the label lives on each child's first "jumd" grandchild if
// that child is itself a "jumb" box, or (for a leaf content box) there is
// no sub-label and this always returns nil for it.
func (b *Box) ChildByLabel(label string) *Box {
	for _, c := range b.Children {
		if c.Type == "jumb" && c.Subtype == label {
			return c
		}
	}
	return nil
}

// ChildrenByType returns every direct child whose Type equals t, in
// document order.
func (b *Box) ChildrenByType(t string) []*Box {
	var out []*Box
	for _, c := range b.Children {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// sortedContainerTypeNames returns the ContainerTypes keys in sorted order,
// for a stable dump of the registry.
func sortedContainerTypeNames() []string {
	names := make([]string, 0, len(ContainerTypes))
	for k := range ContainerTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
