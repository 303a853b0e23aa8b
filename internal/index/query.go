package index

import (
	"database/sql"
	"sort"

	"chemident/pkg/ident"
)

// Resolve fills in the fields missing from partial. The registry number is
// derived first, from the secondary ID when present and otherwise from the
// accession ID; the accession and secondary IDs are then looked up from it.
// Conflicting inputs are not checked. ok is false when nothing is known or
// the indexes are not loaded.
func (i *Indexes) Resolve(partial ident.Identifier) (ident.Identifier, bool) {
	return i.current().resolve(partial)
}

func (s *state) resolve(p ident.Identifier) (ident.Identifier, bool) {
	if s == nil {
		return ident.Identifier{}, false
	}
	reg, acc, sec := p.RegistryNumber, p.AccessionID, p.SecondaryID
	if !reg.Valid {
		if v, ok := s.registryNumber(sec, acc); ok {
			reg = ident.Int(v)
		}
	}
	if reg.Valid {
		if !acc.Valid {
			if v, ok := s.registryToAccession[reg.Int64]; ok {
				acc = ident.Str(v)
			}
		}
		if !sec.Valid {
			if v, ok := s.registryToSecondary[reg.Int64]; ok {
				sec = ident.Int(v)
			}
		}
	}
	id := ident.New(acc, sec, reg)
	if id.IsZero() {
		return ident.Identifier{}, false
	}
	return id, true
}

func (s *state) registryNumber(sec sql.NullInt64, acc sql.NullString) (int64, bool) {
	if sec.Valid {
		if v, ok := s.secondaryToRegistry[sec.Int64]; ok {
			return v, true
		}
	}
	if acc.Valid {
		if v, ok := s.accessionToRegistry[acc.String]; ok {
			return v, true
		}
	}
	return 0, false
}

// RegistryNumber looks up the registry number of a secondary ID, falling back
// to the accession ID.
func (i *Indexes) RegistryNumber(secondary sql.NullInt64, accession sql.NullString) (int64, bool) {
	s := i.current()
	if s == nil {
		return 0, false
	}
	return s.registryNumber(secondary, accession)
}

// RegistryForSecondary returns the registry number mapped to a secondary ID.
func (i *Indexes) RegistryForSecondary(secondary int64) (int64, bool) {
	return i.RegistryNumber(ident.Int(secondary), sql.NullString{})
}

// RegistryForAccession returns the registry number mapped to an accession ID.
func (i *Indexes) RegistryForAccession(accession string) (int64, bool) {
	return i.RegistryNumber(sql.NullInt64{}, ident.Str(accession))
}

// AccessionID returns the accession ID of a registry number.
func (i *Indexes) AccessionID(registry int64) (string, bool) {
	s := i.current()
	if s == nil {
		return "", false
	}
	v, ok := s.registryToAccession[registry]
	return v, ok
}

// SecondaryID returns the secondary ID of a registry number.
func (i *Indexes) SecondaryID(registry int64) (int64, bool) {
	s := i.current()
	if s == nil {
		return 0, false
	}
	v, ok := s.registryToSecondary[registry]
	return v, ok
}

// Parents returns the parents of id after resolving it. ok is false when id
// cannot be resolved or takes no part in the hierarchy; a compound that only
// appears as a parent yields an empty set and true.
func (i *Indexes) Parents(id ident.Identifier) (ident.Set, bool) {
	s := i.current()
	return s.neighbours(id, func(s *state) map[ident.Identifier]ident.Set { return s.parents })
}

// Children returns the children of id after resolving it, with the same
// conventions as Parents.
func (i *Indexes) Children(id ident.Identifier) (ident.Set, bool) {
	s := i.current()
	return s.neighbours(id, func(s *state) map[ident.Identifier]ident.Set { return s.children })
}

func (s *state) neighbours(id ident.Identifier, pick func(*state) map[ident.Identifier]ident.Set) (ident.Set, bool) {
	if s == nil {
		return nil, false
	}
	resolved, ok := s.resolve(id)
	if !ok {
		return nil, false
	}
	if set, ok := pick(s)[resolved]; ok {
		return set.Clone(), true
	}
	_, isChild := s.parents[resolved]
	_, isParent := s.children[resolved]
	if isChild || isParent {
		return ident.NewSet(), true
	}
	return nil, false
}

// Phase returns the highest development phase recorded for id across the
// registry and secondary phase tables. Fractional source phases are truncated
// toward zero when the indexes are built, so 0.5 compares as 0.
func (i *Indexes) Phase(id ident.Identifier) (int, bool) {
	s := i.current()
	if s == nil {
		return 0, false
	}
	resolved, ok := s.resolve(id)
	if !ok {
		return 0, false
	}
	return s.phase(resolved)
}

func (s *state) phase(id ident.Identifier) (int, bool) {
	best := noPhase
	if id.RegistryNumber.Valid {
		if p, ok := s.registryPhase[id.RegistryNumber.Int64]; ok {
			best = max(best, p)
		}
	}
	if id.SecondaryID.Valid {
		if p, ok := s.secondaryPhase[id.SecondaryID.Int64]; ok {
			best = max(best, p)
		}
	}
	if best <= noPhase {
		return 0, false
	}
	return best, true
}

// Sources returns the sorted names of the data sources recorded for a
// secondary ID. It never returns nil.
func (i *Indexes) Sources(secondary int64) []string {
	s := i.current()
	if s == nil {
		return []string{}
	}
	return s.sources(secondary)
}

func (s *state) sources(secondary int64) []string {
	seen := make(map[string]struct{})
	for id := range s.secondarySources[secondary] {
		if name, ok := s.sourceNames[id]; ok {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Record gathers everything known about one compound.
type Record struct {
	Identifier ident.Identifier
	Phase      sql.NullInt64
	Sources    []string
	Parents    []ident.Identifier
	Children   []ident.Identifier
}

// Describe resolves id and collects its phase, sources and hierarchy
// neighbours. Parents and children are sorted.
func (i *Indexes) Describe(id ident.Identifier) (Record, bool) {
	s := i.current()
	if s == nil {
		return Record{}, false
	}
	resolved, ok := s.resolve(id)
	if !ok {
		return Record{}, false
	}
	rec := Record{Identifier: resolved, Sources: []string{}}
	if p, ok := s.phase(resolved); ok {
		rec.Phase = ident.Int(int64(p))
	}
	if resolved.SecondaryID.Valid {
		rec.Sources = s.sources(resolved.SecondaryID.Int64)
	}
	rec.Parents = s.parents[resolved].Sorted()
	rec.Children = s.children[resolved].Sorted()
	return rec, true
}
