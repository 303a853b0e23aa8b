package index

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"chemident/internal/blob"
	"chemident/internal/source"
	"chemident/pkg/ident"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixtureSource returns rows covering every catalogue query:
//
//	secondary 1 <-> registry 100 <-> CHEMBL1
//	secondary 2 <-> registry 200 <-> CHEMBL2
//	secondary 3 <-> registry 300 (no accession)
//	registry 400 <-> CHEMBL4 (no secondary)
//	registry hierarchy: 200 -> 100
//	secondary hierarchy: 3 -> parent 2, active 1
func fixtureSource() *source.Memory {
	return source.NewMemory().
		Add(source.QuerySecondaryRegistry,
			source.Row{int64(1), int64(100)},
			source.Row{int64(2), int64(200)},
			source.Row{int64(3), int64(300)},
			source.Row{nil, int64(999)},
			source.Row{int64(9), nil}).
		Add(source.QueryAccessionRegistry,
			source.Row{"CHEMBL1", int64(100)},
			source.Row{"CHEMBL2", int64(200)},
			source.Row{[]byte("CHEMBL4"), int64(400)},
			source.Row{nil, int64(500)}).
		Add(source.QueryRegistryPhase,
			source.Row{int64(100), int64(2)},
			source.Row{int64(200), nil},
			source.Row{int64(400), float64(0.5)}).
		Add(source.QuerySecondaryPhase,
			source.Row{int64(2), int64(3)},
			source.Row{int64(3), "1"}).
		Add(source.QuerySourceNames,
			source.Row{int64(7), "DrugBank"},
			source.Row{int64(8), "PubChem"}).
		Add(source.QuerySecondarySources,
			source.Row{int64(1), int64(7)},
			source.Row{int64(1), int64(8)},
			source.Row{int64(1), int64(8)},
			source.Row{int64(2), int64(42)}).
		Add(source.QueryRegistryHierarchy,
			source.Row{int64(200), int64(100)},
			source.Row{nil, int64(100)}).
		Add(source.QuerySecondaryHierarchy,
			source.Row{int64(3), int64(2), int64(1)})
}

func full(acc string, sec, reg int64) ident.Identifier {
	return ident.New(ident.Str(acc), ident.Int(sec), ident.Int(reg))
}

func builtIndexes(t *testing.T, store blob.Store, opts ...Option) *Indexes {
	t.Helper()
	if store == nil {
		store = blob.NewMemory()
	}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	idx := New(store, opts...)
	if err := idx.Build(context.Background(), fixtureSource()); err != nil {
		t.Fatalf("build: %v", err)
	}
	return idx
}
