package ident

import (
	"encoding/json"
	"fmt"
)

// Triple is the persisted form of an Identifier: a three element JSON array
// [accession_id, secondary_id, registry_number] with null for absent fields.
type Triple struct {
	AccessionID    *string
	SecondaryID    *int64
	RegistryNumber *int64
}

// Triple converts the identifier into its persisted form.
func (id Identifier) Triple() Triple {
	var t Triple
	if id.AccessionID.Valid {
		v := id.AccessionID.String
		t.AccessionID = &v
	}
	if id.SecondaryID.Valid {
		v := id.SecondaryID.Int64
		t.SecondaryID = &v
	}
	if id.RegistryNumber.Valid {
		v := id.RegistryNumber.Int64
		t.RegistryNumber = &v
	}
	return t
}

// FromTriple rebuilds an Identifier from its persisted form.
func FromTriple(t Triple) Identifier {
	var id Identifier
	if t.AccessionID != nil {
		id.AccessionID = Str(*t.AccessionID)
	}
	if t.SecondaryID != nil {
		id.SecondaryID = Int(*t.SecondaryID)
	}
	if t.RegistryNumber != nil {
		id.RegistryNumber = Int(*t.RegistryNumber)
	}
	return id
}

// MarshalJSON encodes the triple as a fixed length array.
func (t Triple) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{t.AccessionID, t.SecondaryID, t.RegistryNumber})
}

// UnmarshalJSON decodes a three element array; element types are checked.
func (t *Triple) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("identifier triple: expected 3 elements, got %d", len(raw))
	}
	var out Triple
	if err := json.Unmarshal(raw[0], &out.AccessionID); err != nil {
		return fmt.Errorf("identifier triple accession_id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.SecondaryID); err != nil {
		return fmt.Errorf("identifier triple secondary_id: %w", err)
	}
	if err := json.Unmarshal(raw[2], &out.RegistryNumber); err != nil {
		return fmt.Errorf("identifier triple registry_number: %w", err)
	}
	*t = out
	return nil
}
