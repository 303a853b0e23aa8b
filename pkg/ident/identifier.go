// Package ident defines the composite compound identifier that ties together a
// ChEMBL accession ID, a secondary catalog ID and a registry number (molregno).
package ident

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// AccessionPrefix is the fixed textual prefix of every accession identifier.
const AccessionPrefix = "CHEMBL"

// Identifier is an immutable composite key for one compound. Any subset of the
// three fields may be present. Identifiers are comparable and usable as map keys;
// construct them through the helpers so absent fields are normalized.
type Identifier struct {
	AccessionID    sql.NullString
	SecondaryID    sql.NullInt64
	RegistryNumber sql.NullInt64
}

// Str returns a present optional string.
func Str(v string) sql.NullString { return sql.NullString{String: v, Valid: true} }

// Int returns a present optional integer.
func Int(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

// New builds an Identifier from optional fields, normalizing absent values so
// structural equality holds.
func New(accession sql.NullString, secondary, registry sql.NullInt64) Identifier {
	id := Identifier{AccessionID: accession, SecondaryID: secondary, RegistryNumber: registry}
	return id.normalize()
}

// FromRegistry returns an Identifier holding only a registry number.
func FromRegistry(v int64) Identifier { return Identifier{RegistryNumber: Int(v)} }

// FromSecondary returns an Identifier holding only a secondary ID.
func FromSecondary(v int64) Identifier { return Identifier{SecondaryID: Int(v)} }

// FromAccession returns an Identifier holding only an accession ID.
func FromAccession(v string) Identifier { return Identifier{AccessionID: Str(v)} }

func (id Identifier) normalize() Identifier {
	if !id.AccessionID.Valid {
		id.AccessionID = sql.NullString{}
	}
	if !id.SecondaryID.Valid {
		id.SecondaryID = sql.NullInt64{}
	}
	if !id.RegistryNumber.Valid {
		id.RegistryNumber = sql.NullInt64{}
	}
	return id
}

// IsZero reports whether no field is present.
func (id Identifier) IsZero() bool {
	return !id.AccessionID.Valid && !id.SecondaryID.Valid && !id.RegistryNumber.Valid
}

// Complete reports whether all three fields are present.
func (id Identifier) Complete() bool {
	return id.AccessionID.Valid && id.SecondaryID.Valid && id.RegistryNumber.Valid
}

// Equal reports structural equality over the field triple.
func (id Identifier) Equal(other Identifier) bool {
	return id.normalize() == other.normalize()
}

// Compare orders identifiers by (accession, secondary, registry). Absent fields
// sort before present ones; accession IDs compare by their numeric suffix.
func (id Identifier) Compare(other Identifier) int {
	if c := compareAccession(id.AccessionID, other.AccessionID); c != 0 {
		return c
	}
	if c := compareInt(id.SecondaryID, other.SecondaryID); c != 0 {
		return c
	}
	return compareInt(id.RegistryNumber, other.RegistryNumber)
}

// Less reports whether id sorts before other.
func (id Identifier) Less(other Identifier) bool { return id.Compare(other) < 0 }

func compareInt(a, b sql.NullInt64) int {
	av, bv := int64(-1), int64(-1)
	if a.Valid {
		av = a.Int64
	}
	if b.Valid {
		bv = b.Int64
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

// accessionKey yields the numeric ordering key; ok is false when the suffix is
// not a number, in which case the raw string is used after all numeric keys.
func accessionKey(v sql.NullString) (n int64, ok bool) {
	if !v.Valid {
		return -1, true
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(v.String, AccessionPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func compareAccession(a, b sql.NullString) int {
	an, aok := accessionKey(a)
	bn, bok := accessionKey(b)
	switch {
	case aok && bok:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a.String, b.String)
}

// String renders the identifier for logs.
func (id Identifier) String() string {
	acc := "nil"
	if id.AccessionID.Valid {
		acc = strconv.Quote(id.AccessionID.String)
	}
	return fmt.Sprintf("{accession_id: %s, secondary_id: %s, registry_number: %s}", acc, intString(id.SecondaryID), intString(id.RegistryNumber))
}

func intString(v sql.NullInt64) string {
	if !v.Valid {
		return "nil"
	}
	return strconv.FormatInt(v.Int64, 10)
}
