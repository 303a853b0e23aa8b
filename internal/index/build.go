package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"chemident/internal/source"
	"chemident/pkg/ident"
)

// Build extracts every catalogue query from src, one sequential pass each,
// and replaces the current state when all passes succeed. On error the
// previous state is kept.
func (i *Indexes) Build(ctx context.Context, src source.RowSource) (err error) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "index.Build")
	defer func() {
		endSpan(span, err)
		i.recorder.Observe(ctx, "build", err == nil, time.Since(start))
	}()

	s := newState()
	for _, q := range source.Queries() {
		n, err := i.pass(ctx, src, q, s)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("rows."+string(q), n))
	}
	s.invertParents()

	i.publish(s)
	i.logger.Info("indexes built",
		slog.Int("compounds", len(s.registryToAccession)),
		slog.Int("secondary_ids", len(s.secondaryToRegistry)),
		slog.Int("hierarchy_nodes", len(s.parents)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (i *Indexes) pass(ctx context.Context, src source.RowSource, q source.Query, s *state) (int, error) {
	apply := s.rowFunc(q)
	if apply == nil {
		return 0, fmt.Errorf("build: %w: %s", source.ErrUnknownQuery, q)
	}
	rows := 0
	err := src.Query(ctx, q, func(r source.Row) error {
		if len(r) != q.Columns() {
			return fmt.Errorf("%w: %s row has %d values, want %d", source.ErrArity, q, len(r), q.Columns())
		}
		rows++
		return apply(r)
	})
	if err != nil {
		return rows, fmt.Errorf("build %s: %w", q, err)
	}
	i.recorder.AddRows(string(q), rows)
	i.logger.Debug("source pass complete", slog.String("query", string(q)), slog.Int("rows", rows))
	return rows, nil
}

// rowFunc returns the handler folding one row of q into s.
func (s *state) rowFunc(q source.Query) func(source.Row) error {
	switch q {
	case source.QuerySecondaryRegistry:
		return func(r source.Row) error {
			sec, reg, err := intPair(q, r)
			if err != nil || !sec.Valid || !reg.Valid {
				return err
			}
			s.secondaryToRegistry[sec.Int64] = reg.Int64
			s.registryToSecondary[reg.Int64] = sec.Int64
			return nil
		}
	case source.QueryAccessionRegistry:
		return func(r source.Row) error {
			acc, err := stringValue(q, 0, r[0])
			if err != nil {
				return err
			}
			reg, err := intValue(q, 1, r[1])
			if err != nil || !acc.Valid || !reg.Valid {
				return err
			}
			s.accessionToRegistry[acc.String] = reg.Int64
			s.registryToAccession[reg.Int64] = acc.String
			return nil
		}
	case source.QueryRegistryPhase:
		return phaseRow(q, s.registryPhase)
	case source.QuerySecondaryPhase:
		return phaseRow(q, s.secondaryPhase)
	case source.QuerySourceNames:
		return func(r source.Row) error {
			id, err := intValue(q, 0, r[0])
			if err != nil {
				return err
			}
			name, err := stringValue(q, 1, r[1])
			if err != nil || !id.Valid || !name.Valid {
				return err
			}
			s.sourceNames[id.Int64] = name.String
			return nil
		}
	case source.QuerySecondarySources:
		return func(r source.Row) error {
			sec, src, err := intPair(q, r)
			if err != nil || !sec.Valid || !src.Valid {
				return err
			}
			ids, ok := s.secondarySources[sec.Int64]
			if !ok {
				ids = make(map[int64]struct{})
				s.secondarySources[sec.Int64] = ids
			}
			ids[src.Int64] = struct{}{}
			return nil
		}
	case source.QueryRegistryHierarchy:
		return func(r source.Row) error {
			child, parent, err := intPair(q, r)
			if err != nil {
				return err
			}
			s.addEdges(ident.Identifier{RegistryNumber: child}, ident.Identifier{RegistryNumber: parent})
			return nil
		}
	case source.QuerySecondaryHierarchy:
		return func(r source.Row) error {
			var ids [3]sql.NullInt64
			for col := range ids {
				v, err := intValue(q, col, r[col])
				if err != nil {
					return err
				}
				ids[col] = v
			}
			s.addEdges(ident.Identifier{SecondaryID: ids[0]},
				ident.Identifier{SecondaryID: ids[1]},
				ident.Identifier{SecondaryID: ids[2]})
			return nil
		}
	}
	return nil
}

func phaseRow(q source.Query, into map[int64]int) func(source.Row) error {
	return func(r source.Row) error {
		id, err := intValue(q, 0, r[0])
		if err != nil {
			return err
		}
		phase, ok, err := phaseValue(q, 1, r[1])
		if err != nil || !id.Valid || !ok {
			return err
		}
		into[id.Int64] = phase
		return nil
	}
}

// addEdges resolves the raw child and parent identifiers and records the
// edges. A child that resolves is recorded even when none of its parents do.
func (s *state) addEdges(rawChild ident.Identifier, rawParents ...ident.Identifier) {
	child, ok := s.resolve(rawChild)
	if !ok {
		return
	}
	set, ok := s.parents[child]
	if !ok {
		set = ident.NewSet()
		s.parents[child] = set
	}
	for _, raw := range rawParents {
		if parent, ok := s.resolve(raw); ok {
			set.Add(parent)
		}
	}
}

// invertParents derives the children map from the parents map.
func (s *state) invertParents() {
	for child, parents := range s.parents {
		for parent := range parents {
			kids, ok := s.children[parent]
			if !ok {
				kids = ident.NewSet()
				s.children[parent] = kids
			}
			kids.Add(child)
		}
	}
}

func intPair(q source.Query, r source.Row) (sql.NullInt64, sql.NullInt64, error) {
	a, err := intValue(q, 0, r[0])
	if err != nil {
		return a, sql.NullInt64{}, err
	}
	b, err := intValue(q, 1, r[1])
	return a, b, err
}

func badValue(q source.Query, col int, v any) error {
	return fmt.Errorf("%w: %s column %d: %T %v", ErrValue, q, col, v, v)
}

// intValue coerces a driver value into an optional integer. Floats must be
// integral; strings and byte slices must parse as base 10.
func intValue(q source.Query, col int, v any) (sql.NullInt64, error) {
	switch x := v.(type) {
	case nil:
		return sql.NullInt64{}, nil
	case int64:
		return ident.Int(x), nil
	case int32:
		return ident.Int(int64(x)), nil
	case int:
		return ident.Int(int64(x)), nil
	case int16:
		return ident.Int(int64(x)), nil
	case uint32:
		return ident.Int(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return sql.NullInt64{}, badValue(q, col, v)
		}
		return ident.Int(int64(x)), nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 || math.IsNaN(x) {
			return sql.NullInt64{}, badValue(q, col, v)
		}
		return ident.Int(int64(x)), nil
	case float32:
		return intValue(q, col, float64(x))
	case []byte:
		return intValue(q, col, string(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return sql.NullInt64{}, badValue(q, col, v)
		}
		return ident.Int(n), nil
	}
	return sql.NullInt64{}, badValue(q, col, v)
}

func stringValue(q source.Query, col int, v any) (sql.NullString, error) {
	switch x := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return ident.Str(x), nil
	case []byte:
		return ident.Str(string(x)), nil
	}
	return sql.NullString{}, badValue(q, col, v)
}

// phaseValue accepts fractional phases (0.5 marks early phase 1) and
// truncates them toward zero. Values outside the int range are rejected.
func phaseValue(q source.Query, col int, v any) (int, bool, error) {
	switch x := v.(type) {
	case float64:
		if x < math.MinInt || x >= math.MaxInt || math.IsNaN(x) {
			return 0, false, badValue(q, col, v)
		}
		return int(x), true, nil
	case float32:
		return phaseValue(q, col, float64(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false, badValue(q, col, v)
		}
		return phaseValue(q, col, f)
	case []byte:
		return phaseValue(q, col, string(x))
	}
	n, err := intValue(q, col, v)
	if err != nil || !n.Valid {
		return 0, false, err
	}
	return int(n.Int64), true, nil
}
