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

import (
	"github.com/faceless2/json/box"
	"github.com/faceless2/json/node"
)

// AssertionKind discriminates the assertion payload shapes this package
// gives nontrivial verify behaviour to (§6 Supplemented Features); any
// other label is still stored and hashed but carries no kind-specific
// verification beyond its hashed-URI digest.
type AssertionKind int

const (
	KindOther AssertionKind = iota
	KindHashData
	KindHashBMFF
	KindHashBMFFv2
	KindActions
	KindIngredient
	KindCreativeWork
)

const (
	LabelHashData     = "c2pa.hash.data"
	LabelHashBMFF     = "c2pa.hash.bmff"
	LabelHashBMFFv2   = "c2pa.hash.bmff.v2"
	LabelActions      = "c2pa.actions"
	LabelIngredient   = "c2pa.ingredient"
	LabelCreativeWork = "stds.schema-org.CreativeWork"
)

func kindForLabel(label string) AssertionKind {
	switch label {
	case LabelHashData:
		return KindHashData
	case LabelHashBMFF:
		return KindHashBMFF
	case LabelHashBMFFv2:
		return KindHashBMFFv2
	case LabelActions:
		return KindActions
	case LabelIngredient:
		return KindIngredient
	case LabelCreativeWork:
		return KindCreativeWork
	default:
		return KindOther
	}
}

// Assertion is one entry of a manifest's assertion store: a labelled JUMBF
// super-box whose sole content box carries a value-tree payload.
type Assertion struct {
	Label   string
	Kind    AssertionKind
	Box     *box.Box
	Payload *node.Node
}

// ExclusionRange is one byte range excluded from a data-hash computation
// (§4.9 step 5), typically the range the hard-binding assertion itself
// occupies once embedded.
type ExclusionRange struct {
	Start  int64
	Length int64
}

// HashDataPayload is the c2pa.hash.data assertion body.
type HashDataPayload struct {
	Name       string
	Alg        string
	Hash       []byte
	Exclusions []ExclusionRange
}

// ToNode renders the payload to its CBOR map shape.
func (p *HashDataPayload) ToNode() *node.Node {
	m := node.NewMap()
	if p.Name != "" {
		m.Put("name", node.NewString(p.Name))
	}
	m.Put("alg", node.NewString(p.Alg))
	m.Put("hash", node.NewBuffer(p.Hash))
	excl := node.NewList()
	for _, e := range p.Exclusions {
		em := node.NewMap()
		em.Put("start", node.NewLong(e.Start))
		em.Put("length", node.NewLong(e.Length))
		excl.AppendChild(em)
	}
	m.Put("exclusions", excl)
	return m
}

// HashDataPayloadFromNode parses a c2pa.hash.data assertion map.
func HashDataPayloadFromNode(n *node.Node) (*HashDataPayload, error) {
	p := &HashDataPayload{}
	if v, _ := n.Get("name"); v != nil {
		p.Name, _ = v.StringValue()
	}
	if v, _ := n.Get("alg"); v != nil {
		p.Alg, _ = v.StringValue()
	}
	if v, _ := n.Get("hash"); v != nil {
		p.Hash, _ = v.BufferValue()
	}
	if v, _ := n.Get("exclusions"); v != nil {
		for i := 0; i < v.Len(); i++ {
			c, _ := v.Index(i)
			start, length := int64(0), int64(0)
			if s, _ := c.Get("start"); s != nil {
				start, _ = s.LongValue()
			}
			if l, _ := c.Get("length"); l != nil {
				length, _ = l.LongValue()
			}
			p.Exclusions = append(p.Exclusions, ExclusionRange{Start: start, Length: length})
		}
	}
	return p, nil
}

// BMFFHashPayload is the c2pa.hash.bmff / c2pa.hash.bmff.v2 assertion
// body: a hard binding computed over named BMFF box ranges rather than the
// whole asset minus exclusions.
type BMFFHashPayload struct {
	V2        bool
	Alg       string
	Hash      []byte
	BoxRanges []string // BMFF box paths covered, e.g. "/moov/trak[0]/mdia"
}

func (p *BMFFHashPayload) ToNode() *node.Node {
	m := node.NewMap()
	m.Put("alg", node.NewString(p.Alg))
	m.Put("hash", node.NewBuffer(p.Hash))
	ranges := node.NewList()
	for _, r := range p.BoxRanges {
		ranges.AppendChild(node.NewString(r))
	}
	m.Put("merkle", ranges)
	return m
}

func BMFFHashPayloadFromNode(n *node.Node, v2 bool) (*BMFFHashPayload, error) {
	p := &BMFFHashPayload{V2: v2}
	if v, _ := n.Get("alg"); v != nil {
		p.Alg, _ = v.StringValue()
	}
	if v, _ := n.Get("hash"); v != nil {
		p.Hash, _ = v.BufferValue()
	}
	if v, _ := n.Get("merkle"); v != nil {
		for i := 0; i < v.Len(); i++ {
			c, _ := v.Index(i)
			s, _ := c.StringValue()
			p.BoxRanges = append(p.BoxRanges, s)
		}
	}
	return p, nil
}

// Action is one entry of a c2pa.actions assertion.
type Action struct {
	Action     string
	When       string
	Ingredient string // hashed-URI to an ingredient assertion, when present
}

// ActionsPayload is the c2pa.actions assertion body.
type ActionsPayload struct {
	Actions []Action
}

func (p *ActionsPayload) ToNode() *node.Node {
	m := node.NewMap()
	list := node.NewList()
	for _, a := range p.Actions {
		am := node.NewMap()
		am.Put("action", node.NewString(a.Action))
		if a.When != "" {
			am.Put("when", node.NewString(a.When))
		}
		if a.Ingredient != "" {
			am.Put("ingredient", node.NewString(a.Ingredient))
		}
		list.AppendChild(am)
	}
	m.Put("actions", list)
	return m
}

func ActionsPayloadFromNode(n *node.Node) (*ActionsPayload, error) {
	p := &ActionsPayload{}
	v, _ := n.Get("actions")
	if v == nil {
		return p, nil
	}
	for i := 0; i < v.Len(); i++ {
		c, _ := v.Index(i)
		a := Action{}
		if x, _ := c.Get("action"); x != nil {
			a.Action, _ = x.StringValue()
		}
		if x, _ := c.Get("when"); x != nil {
			a.When, _ = x.StringValue()
		}
		if x, _ := c.Get("ingredient"); x != nil {
			a.Ingredient, _ = x.StringValue()
		}
		p.Actions = append(p.Actions, a)
	}
	return p, nil
}

// ValidationStatus is an embedded failure code an ingredient carries
// forward from its own (earlier) validation.
type ValidationStatus struct {
	Code string
	URL  string
}

// IngredientPayload is the c2pa.ingredient assertion body.
type IngredientPayload struct {
	Title            string
	Format           string
	DocumentID       string
	InstanceID       string
	Relationship     string // "parentOf", "componentOf", ...
	ValidationStatus []ValidationStatus
}

func (p *IngredientPayload) ToNode() *node.Node {
	m := node.NewMap()
	m.Put("title", node.NewString(p.Title))
	m.Put("format", node.NewString(p.Format))
	if p.DocumentID != "" {
		m.Put("documentID", node.NewString(p.DocumentID))
	}
	m.Put("instanceID", node.NewString(p.InstanceID))
	m.Put("relationship", node.NewString(p.Relationship))
	if len(p.ValidationStatus) > 0 {
		vs := node.NewList()
		for _, s := range p.ValidationStatus {
			sm := node.NewMap()
			sm.Put("code", node.NewString(s.Code))
			if s.URL != "" {
				sm.Put("url", node.NewString(s.URL))
			}
			vs.AppendChild(sm)
		}
		m.Put("validationStatus", vs)
	}
	return m
}

func IngredientPayloadFromNode(n *node.Node) (*IngredientPayload, error) {
	p := &IngredientPayload{}
	if v, _ := n.Get("title"); v != nil {
		p.Title, _ = v.StringValue()
	}
	if v, _ := n.Get("format"); v != nil {
		p.Format, _ = v.StringValue()
	}
	if v, _ := n.Get("documentID"); v != nil {
		p.DocumentID, _ = v.StringValue()
	}
	if v, _ := n.Get("instanceID"); v != nil {
		p.InstanceID, _ = v.StringValue()
	}
	if v, _ := n.Get("relationship"); v != nil {
		p.Relationship, _ = v.StringValue()
	}
	if v, _ := n.Get("validationStatus"); v != nil {
		for i := 0; i < v.Len(); i++ {
			c, _ := v.Index(i)
			s := ValidationStatus{}
			if x, _ := c.Get("code"); x != nil {
				s.Code, _ = x.StringValue()
			}
			if x, _ := c.Get("url"); x != nil {
				s.URL, _ = x.StringValue()
			}
			p.ValidationStatus = append(p.ValidationStatus, s)
		}
	}
	return p, nil
}

// verifyIngredient checks the at-most-one-parentOf invariant and surfaces
// any embedded validation failure (§4.9 verification step 5).
func verifyIngredient(a *Assertion, siblingParentOfCount *int) []Result {
	var results []Result
	p, err := IngredientPayloadFromNode(a.Payload)
	if err != nil {
		results = append(results, NewResult(StatusGeneralError, a.Label, err.Error()))
		return results
	}
	if p.Relationship == "parentOf" {
		*siblingParentOfCount++
		if *siblingParentOfCount > 1 {
			results = append(results, NewResult(StatusIngredientMultipleParentOf, a.Label, ""))
		}
	}
	for _, s := range p.ValidationStatus {
		results = append(results, NewResult(StatusIngredientValidationStatus, a.Label, s.Code))
	}
	return results
}

// verifyActions checks every referenced ingredient hashed-URI resolves to
// an assertion present in the manifest (§4.9 verification step 5).
func verifyActions(a *Assertion, manifest *Manifest) []Result {
	var results []Result
	p, err := ActionsPayloadFromNode(a.Payload)
	if err != nil {
		results = append(results, NewResult(StatusGeneralError, a.Label, err.Error()))
		return results
	}
	for _, act := range p.Actions {
		if act.Ingredient == "" {
			continue
		}
		if _, err := resolveJUMBFURI(manifest.Box, act.Ingredient); err != nil {
			results = append(results, NewResult(StatusActionsIngredientMissing, a.Label, act.Ingredient))
		}
	}
	return results
}
