// Package memory implements a row source over fixture rows held in memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"chemident/internal/source/core"
)

// Source serves rows registered with Add. It is safe for concurrent use.
type Source struct {
	mu     sync.RWMutex
	rows   map[core.Query][]core.Row
	fail   map[core.Query]error
	closed bool
}

// New returns an empty source; every catalogue query yields no rows.
func New() *Source {
	return &Source{rows: make(map[core.Query][]core.Row), fail: make(map[core.Query]error)}
}

// Add appends rows to q. Rows must match the query's column count.
func (s *Source) Add(q core.Query, rows ...core.Row) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[q] = append(s.rows[q], append(core.Row(nil), r...))
	}
	return s
}

// Fail makes q return err instead of its rows.
func (s *Source) Fail(q core.Query, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[q] = err
	return s
}

// Query streams the fixture rows of q to fn.
func (s *Source) Query(ctx context.Context, q core.Query, fn func(core.Row) error) error {
	n := q.Columns()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrUnknownQuery, q)
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("query %s: source closed", q)
	}
	err := s.fail[q]
	rows := s.rows[q]
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("query %s: %w", q, err)
	}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(r) != n {
			return fmt.Errorf("%w: %s row has %d values, want %d", core.ErrArity, q, len(r), n)
		}
		if err := fn(append(core.Row(nil), r...)); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the source closed; later queries fail.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
