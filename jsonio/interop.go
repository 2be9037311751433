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

package jsonio

import (
	"fmt"
	"io"
	"reflect"

	cbor "github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/matrix-org/gomatrixserverlib"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// InteropCodec converts directly between JSON and CBOR bytes without
// building a value tree, for callers that only need a fast one-shot
// conversion rather than path access or listeners. Kept as a thin sibling
// of the tree-based Reader/Writer, not a replacement for them.
type InteropCodec struct {
	// Canonical selects RFC 7049 §3.9 canonical CBOR on JSONToCBOR and
	// Matrix canonical JSON (sorted keys, no insignificant whitespace) on
	// CBORToJSON.
	Canonical bool
}

// CBORToJSON converts a single CBOR item to a single JSON text.
func (c *InteropCodec) CBORToJSON(input io.Reader) ([]byte, error) {
	var intermediate interface{}
	if err := cbor.NewDecoder(input).Decode(&intermediate); err != nil {
		return nil, fmt.Errorf("CBORToJSON: decoding cbor: %w", err)
	}
	intermediate = cborInterfaceToJSONInterface(intermediate)
	b, err := fastJSON.Marshal(intermediate)
	if err != nil {
		return nil, err
	}
	if c.Canonical {
		return gomatrixserverlib.CanonicalJSON(b)
	}
	return b, nil
}

// JSONToCBOR converts a single JSON text to a single CBOR item.
func (c *InteropCodec) JSONToCBOR(input io.Reader) ([]byte, error) {
	var intermediate interface{}
	if err := fastJSON.NewDecoder(input).Decode(&intermediate); err != nil {
		return nil, fmt.Errorf("JSONToCBOR: decoding json: %w", err)
	}
	if c.Canonical {
		enc, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return nil, fmt.Errorf("JSONToCBOR: building EncMode: %w", err)
		}
		return enc.Marshal(intermediate)
	}
	return cbor.Marshal(intermediate)
}

// cborInterfaceToJSONInterface rewrites fxamacker/cbor's native interface{}
// shapes into ones encoding/json can marshal: map[interface{}]interface{}
// becomes map[string]interface{} with keys formatted by fmt.Sprint, and
// slices are converted element by element. The JSONToCBOR direction needs
// no bridge. The value tree's own codecs (cborio) don't go through
// interface{} at all, but this fast path does and needs the bridge.
func cborInterfaceToJSONInterface(cborInt interface{}) interface{} {
	if cborInt == nil {
		return nil
	}
	switch thing := reflect.ValueOf(cborInt); thing.Kind() {
	case reflect.Slice:
		if buf, ok := cborInt.([]byte); ok {
			return buf
		}
		arr := cborInt.([]interface{})
		for i, element := range arr {
			arr[i] = cborInterfaceToJSONInterface(element)
		}
		return arr
	case reflect.Map:
		result := make(map[string]interface{})
		m := cborInt.(map[interface{}]interface{})
		for k, v := range m {
			result[fmt.Sprint(k)] = cborInterfaceToJSONInterface(v)
		}
		return result
	default:
		return cborInt
	}
}
