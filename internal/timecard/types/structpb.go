package types

import (
	"bytes"
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts a JSON-tagged wire type into a google.protobuf.Struct,
// the protobuf form of every request and response.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// FromStruct is the inverse of ToStruct.  Unknown fields are rejected.
func FromStruct(st *structpb.Struct, v any) error {
	raw, err := st.MarshalJSON()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
