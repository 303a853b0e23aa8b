package index

import (
	"context"
	"database/sql"
	"testing"

	"chemident/internal/blob"
	"chemident/internal/source"
	"chemident/pkg/ident"
)

func TestResolve_Scenario(t *testing.T) {
	src := source.NewMemory().
		Add(source.QuerySecondaryRegistry,
			source.Row{int64(1), int64(100)},
			source.Row{int64(2), int64(200)}).
		Add(source.QueryAccessionRegistry,
			source.Row{"CHEMBL1", int64(100)},
			source.Row{"CHEMBL2", int64(200)}).
		Add(source.QueryRegistryPhase, source.Row{int64(100), int64(2)}).
		Add(source.QueryRegistryHierarchy, source.Row{int64(200), int64(100)})
	idx := New(blob.NewMemory(), WithLogger(quietLogger()))
	if err := idx.Build(context.Background(), src); err != nil {
		t.Fatalf("build: %v", err)
	}

	got, ok := idx.Resolve(ident.FromSecondary(2))
	if !ok || !got.Equal(full("CHEMBL2", 2, 200)) {
		t.Fatalf("resolve secondary 2: %v %v", got, ok)
	}
	parents, ok := idx.Parents(ident.FromSecondary(2))
	if !ok || !parents.Has(full("CHEMBL1", 1, 100)) {
		t.Fatalf("parents of secondary 2: %v %v", parents.Sorted(), ok)
	}
	if p, ok := idx.Phase(ident.FromSecondary(1)); !ok || p != 2 {
		t.Fatalf("phase of secondary 1: %d %v", p, ok)
	}
	if p, ok := idx.Phase(ident.FromSecondary(2)); ok {
		t.Fatalf("secondary 2 has no phase, got %d", p)
	}
}

func TestResolve(t *testing.T) {
	idx := builtIndexes(t, nil)
	cases := []struct {
		name string
		in   ident.Identifier
		want ident.Identifier
		ok   bool
	}{
		{"from registry", ident.FromRegistry(100), full("CHEMBL1", 1, 100), true},
		{"from accession", ident.FromAccession("CHEMBL2"), full("CHEMBL2", 2, 200), true},
		{"no accession", ident.FromSecondary(3), ident.Identifier{SecondaryID: ident.Int(3), RegistryNumber: ident.Int(300)}, true},
		{"no secondary", ident.FromAccession("CHEMBL4"), ident.Identifier{AccessionID: ident.Str("CHEMBL4"), RegistryNumber: ident.Int(400)}, true},
		{"unknown secondary kept", ident.FromSecondary(77), ident.FromSecondary(77), true},
		{"secondary wins", ident.Identifier{AccessionID: ident.Str("CHEMBL2"), SecondaryID: ident.Int(1)},
			ident.Identifier{AccessionID: ident.Str("CHEMBL2"), SecondaryID: ident.Int(1), RegistryNumber: ident.Int(100)}, true},
		{"empty", ident.Identifier{}, ident.Identifier{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := idx.Resolve(tc.in)
			if ok != tc.ok || !got.Equal(tc.want) {
				t.Fatalf("Resolve(%v) = %v %v, want %v %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	idx := builtIndexes(t, nil)
	inputs := []ident.Identifier{
		ident.FromRegistry(100), ident.FromRegistry(400), ident.FromSecondary(3),
		ident.FromAccession("CHEMBL2"), ident.FromSecondary(77), ident.FromAccession("CHEMBL99"),
	}
	for _, in := range inputs {
		once, ok := idx.Resolve(in)
		if !ok {
			t.Fatalf("Resolve(%v) failed", in)
		}
		twice, ok := idx.Resolve(once)
		if !ok || !twice.Equal(once) {
			t.Fatalf("Resolve not idempotent for %v: %v then %v", in, once, twice)
		}
	}
}

func TestLookups(t *testing.T) {
	idx := builtIndexes(t, nil)
	if reg, ok := idx.RegistryForSecondary(2); !ok || reg != 200 {
		t.Fatalf("registry for secondary 2: %d %v", reg, ok)
	}
	if reg, ok := idx.RegistryForAccession("CHEMBL4"); !ok || reg != 400 {
		t.Fatalf("registry for CHEMBL4: %d %v", reg, ok)
	}
	if reg, ok := idx.RegistryNumber(ident.Int(77), ident.Str("CHEMBL1")); !ok || reg != 100 {
		t.Fatalf("accession must be the fallback: %d %v", reg, ok)
	}
	if _, ok := idx.RegistryNumber(sql.NullInt64{}, sql.NullString{}); ok {
		t.Fatalf("expected miss with no inputs")
	}
	if acc, ok := idx.AccessionID(200); !ok || acc != "CHEMBL2" {
		t.Fatalf("accession of 200: %q %v", acc, ok)
	}
	if _, ok := idx.AccessionID(300); ok {
		t.Fatalf("registry 300 has no accession")
	}
	if sec, ok := idx.SecondaryID(300); !ok || sec != 3 {
		t.Fatalf("secondary of 300: %d %v", sec, ok)
	}
	if _, ok := idx.SecondaryID(400); ok {
		t.Fatalf("registry 400 has no secondary")
	}
}

func TestHierarchyQueries(t *testing.T) {
	idx := builtIndexes(t, nil)
	chembl1 := full("CHEMBL1", 1, 100)
	chembl2 := full("CHEMBL2", 2, 200)

	parents, ok := idx.Parents(ident.FromRegistry(100))
	if !ok || parents.Len() != 0 || parents == nil {
		t.Fatalf("a root compound has an empty parent set: %v %v", parents, ok)
	}
	children, ok := idx.Children(ident.FromAccession("CHEMBL1"))
	if !ok || !children.Has(chembl2) || children.Len() != 2 {
		t.Fatalf("children of CHEMBL1: %v %v", children.Sorted(), ok)
	}
	leaf, ok := idx.Children(ident.FromSecondary(3))
	if !ok || leaf.Len() != 0 {
		t.Fatalf("a leaf has an empty child set: %v %v", leaf, ok)
	}
	if _, ok := idx.Parents(ident.FromRegistry(400)); ok {
		t.Fatalf("registry 400 takes no part in the hierarchy")
	}
	if _, ok := idx.Children(ident.Identifier{}); ok {
		t.Fatalf("empty identifier cannot be resolved")
	}

	children.Add(ident.FromRegistry(999))
	again, _ := idx.Children(chembl1)
	if again.Has(ident.FromRegistry(999)) {
		t.Fatalf("returned sets must not alias the index")
	}
}

func TestPhase(t *testing.T) {
	idx := builtIndexes(t, nil)
	cases := []struct {
		name string
		in   ident.Identifier
		want int
		ok   bool
	}{
		{"registry only", ident.FromRegistry(100), 2, true},
		{"secondary beats missing registry", ident.FromRegistry(200), 3, true},
		{"truncated fraction", ident.FromAccession("CHEMBL4"), 0, true},
		{"string phase", ident.FromSecondary(3), 1, true},
		{"unknown", ident.FromSecondary(77), 0, false},
		{"empty", ident.Identifier{}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := idx.Phase(tc.in)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("Phase(%v) = %d %v, want %d %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestPhase_TakesMaximum(t *testing.T) {
	src := source.NewMemory().
		Add(source.QuerySecondaryRegistry, source.Row{int64(1), int64(100)}).
		Add(source.QueryRegistryPhase, source.Row{int64(100), int64(1)}).
		Add(source.QuerySecondaryPhase, source.Row{int64(1), int64(4)})
	idx := New(blob.NewMemory(), WithLogger(quietLogger()))
	if err := idx.Build(context.Background(), src); err != nil {
		t.Fatalf("build: %v", err)
	}
	if p, ok := idx.Phase(ident.FromRegistry(100)); !ok || p != 4 {
		t.Fatalf("expected max phase 4, got %d %v", p, ok)
	}
}

func TestSources(t *testing.T) {
	idx := builtIndexes(t, nil)
	got := idx.Sources(1)
	if len(got) != 2 || got[0] != "DrugBank" || got[1] != "PubChem" {
		t.Fatalf("unexpected sources %v", got)
	}
	for _, sec := range []int64{2, 3, 77} {
		if got := idx.Sources(sec); got == nil || len(got) != 0 {
			t.Fatalf("Sources(%d) must be empty and non-nil, got %#v", sec, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	idx := builtIndexes(t, nil)
	rec, ok := idx.Describe(ident.FromAccession("CHEMBL2"))
	if !ok {
		t.Fatalf("describe CHEMBL2 failed")
	}
	if !rec.Identifier.Equal(full("CHEMBL2", 2, 200)) || !rec.Phase.Valid || rec.Phase.Int64 != 3 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.Parents) != 1 || !rec.Parents[0].Equal(full("CHEMBL1", 1, 100)) || len(rec.Children) != 1 {
		t.Fatalf("unexpected hierarchy in %+v", rec)
	}
	if rec.Sources == nil || len(rec.Sources) != 0 {
		t.Fatalf("unexpected sources %#v", rec.Sources)
	}
	if _, ok := idx.Describe(ident.Identifier{}); ok {
		t.Fatalf("expected miss for an empty identifier")
	}
}

func TestQueriesBeforeBuild(t *testing.T) {
	idx := New(blob.NewMemory(), WithLogger(quietLogger()))
	if idx.Loaded() || idx.Stats() != nil {
		t.Fatalf("fresh instance must not be loaded")
	}
	assertEmpty(t, idx)
}

// assertEmpty checks that every query on idx reports a miss.
func assertEmpty(t *testing.T, idx *Indexes) {
	t.Helper()
	if _, ok := idx.Resolve(ident.FromRegistry(100)); ok {
		t.Fatalf("Resolve must miss")
	}
	if _, ok := idx.RegistryForSecondary(1); ok {
		t.Fatalf("RegistryForSecondary must miss")
	}
	if _, ok := idx.AccessionID(100); ok {
		t.Fatalf("AccessionID must miss")
	}
	if _, ok := idx.SecondaryID(100); ok {
		t.Fatalf("SecondaryID must miss")
	}
	if _, ok := idx.Parents(ident.FromRegistry(200)); ok {
		t.Fatalf("Parents must miss")
	}
	if _, ok := idx.Children(ident.FromRegistry(100)); ok {
		t.Fatalf("Children must miss")
	}
	if _, ok := idx.Phase(ident.FromRegistry(100)); ok {
		t.Fatalf("Phase must miss")
	}
	if got := idx.Sources(1); got == nil || len(got) != 0 {
		t.Fatalf("Sources must be empty, got %#v", got)
	}
	if _, ok := idx.Describe(ident.FromRegistry(100)); ok {
		t.Fatalf("Describe must miss")
	}
}
