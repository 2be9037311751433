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

// Package c2pa implements the manifest/claim/assertion-store/signature
// state machine that composes a verifiable provenance graph over a box
// tree (package box), per the C2PA content-provenance specification.
package c2pa

// Code is one entry of the fixed C2PA status-code taxonomy (§6.3). Every
// signing precondition and verification step reports one of these rather
// than an ad-hoc error, so a caller can render a human-facing validation
// report without inspecting Go error text.
type Code string

const (
	StatusClaimSignatureValidated   Code = "claimSignature.validated"
	StatusClaimSignatureMismatch    Code = "claimSignature.mismatch"
	StatusAssertionHashedURIMatch   Code = "assertion.hashedURI.match"
	StatusAssertionHashedURIMismatch Code = "assertion.hashedURI.mismatch"
	StatusAssertionDataHashMatch    Code = "assertion.dataHash.match"
	StatusAssertionDataHashMismatch Code = "assertion.dataHash.mismatch"
	StatusAssertionBMFFHashMatch    Code = "assertion.bmffHash.match"
	StatusAssertionBMFFHashMismatch Code = "assertion.bmffHash.mismatch"
	StatusAssertionMissing          Code = "assertion.missing"
	StatusAssertionMultipleHardBindings Code = "assertion.multipleHardBindings"
	StatusClaimHardBindingsMissing  Code = "claim.hardBindings.missing"
	StatusClaimMissing              Code = "claim.missing"
	StatusSignatureMissing          Code = "signature.missing"
	StatusIngredientMultipleParentOf Code = "ingredient.multipleParentOf"
	StatusIngredientValidationStatus Code = "ingredient.validationStatus"
	StatusActionsIngredientMissing  Code = "actions.ingredientMissing"
	StatusGeneralError               Code = "general.error"
)

// info carries the fixed (ok, description) pair for each Code, keyed by
// the official code string per §6.3.
var info = map[Code]struct {
	OK   bool
	Desc string
}{
	StatusClaimSignatureValidated:      {true, "claim signature successfully validated"},
	StatusClaimSignatureMismatch:       {false, "claim signature did not validate"},
	StatusAssertionHashedURIMatch:      {true, "assertion hashed URI digest matches"},
	StatusAssertionHashedURIMismatch:   {false, "assertion hashed URI digest does not match"},
	StatusAssertionDataHashMatch:       {true, "hard binding data hash matches"},
	StatusAssertionDataHashMismatch:    {false, "hard binding data hash does not match"},
	StatusAssertionBMFFHashMatch:       {true, "hard binding BMFF hash matches"},
	StatusAssertionBMFFHashMismatch:    {false, "hard binding BMFF hash does not match"},
	StatusAssertionMissing:             {false, "claim references an assertion absent from the assertion store"},
	StatusAssertionMultipleHardBindings: {false, "more than one hard-binding assertion present"},
	StatusClaimHardBindingsMissing:     {false, "no hard-binding assertion present"},
	StatusClaimMissing:                 {false, "manifest has no claim box"},
	StatusSignatureMissing:             {false, "manifest has no signature box"},
	StatusIngredientMultipleParentOf:   {false, "ingredient declares more than one parentOf relationship"},
	StatusIngredientValidationStatus:   {false, "ingredient carries an embedded validation failure"},
	StatusActionsIngredientMissing:     {false, "c2pa.actions references an ingredient absent from the manifest"},
	StatusGeneralError:                 {false, "internal error while traversing the manifest"},
}

// Result is one reported status: the code plus the JUMBF locus it applies
// to (a hashed-URI or assertion label) and, for errors, a human message.
type Result struct {
	Code    Code
	OK      bool
	Locus   string
	Message string
}

// NewResult builds a Result from a fixed Code, looking up its OK flag and
// default description.
func NewResult(code Code, locus string, detail string) Result {
	entry := info[code]
	msg := entry.Desc
	if detail != "" {
		msg = entry.Desc + ": " + detail
	}
	return Result{Code: code, OK: entry.OK, Locus: locus, Message: msg}
}

// AllOK reports whether every result in results is a success code, the
// single predicate of overall verification success (§7).
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
