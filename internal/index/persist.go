package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chemident/internal/blob"
	"chemident/pkg/ident"
)

const contentTypeJSON = "application/json"

// hierarchyEntry is the persisted form of one adjacency list.
type hierarchyEntry struct {
	ID    ident.Triple   `json:"id"`
	Links []ident.Triple `json:"links"`
}

// Key returns the blob key a table is stored under.
func (i *Indexes) Key(table string) string {
	return path.Join(i.prefix, table+".json")
}

// Save writes every table to the blob store, replacing existing blobs.
func (i *Indexes) Save(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "index.Save", trace.WithAttributes(attribute.String("index.prefix", i.prefix)))
	defer func() {
		endSpan(span, err)
		i.recorder.Observe(ctx, "save", err == nil, time.Since(start))
	}()

	s := i.current()
	if s == nil {
		return ErrNotLoaded
	}
	for _, table := range Tables() {
		payload, entries, err := s.encode(table)
		if err != nil {
			return fmt.Errorf("encode %s: %w", table, err)
		}
		if err := i.replace(ctx, table, payload, entries); err != nil {
			return err
		}
	}
	i.logger.Info("indexes saved", slog.String("prefix", i.prefix), slog.String("driver", string(i.store.Driver())), slog.Duration("duration", time.Since(start)))
	return nil
}

func (i *Indexes) replace(ctx context.Context, table string, payload []byte, entries int) error {
	key := i.Key(table)
	if _, err := i.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	_, err := i.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentTypeJSON,
		Metadata:    map[string]string{"table": table, "entries": strconv.Itoa(entries)},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *state) encode(table string) ([]byte, int, error) {
	var v any
	switch table {
	case TableSecondaryToRegistry:
		v = s.secondaryToRegistry
	case TableRegistryToSecondary:
		v = s.registryToSecondary
	case TableAccessionToRegistry:
		v = s.accessionToRegistry
	case TableRegistryToAccession:
		v = s.registryToAccession
	case TableRegistryPhase:
		v = s.registryPhase
	case TableSecondaryPhase:
		v = s.secondaryPhase
	case TableSourceNames:
		v = s.sourceNames
	case TableSecondarySources:
		out := make(map[int64][]int64, len(s.secondarySources))
		for sec, ids := range s.secondarySources {
			list := make([]int64, 0, len(ids))
			for id := range ids {
				list = append(list, id)
			}
			sort.Slice(list, func(a, b int) bool { return list[a] < list[b] })
			out[sec] = list
		}
		v = out
	case TableCompoundParents:
		v = encodeHierarchy(s.parents)
	case TableCompoundChildren:
		v = encodeHierarchy(s.children)
	default:
		return nil, 0, fmt.Errorf("unknown table %q", table)
	}
	b, err := json.Marshal(v)
	return b, s.counts()[table], err
}

func encodeHierarchy(m map[ident.Identifier]ident.Set) []hierarchyEntry {
	keys := make([]ident.Identifier, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	ident.Sort(keys)
	out := make([]hierarchyEntry, 0, len(keys))
	for _, id := range keys {
		links := m[id].Sorted()
		triples := make([]ident.Triple, 0, len(links))
		for _, l := range links {
			triples = append(triples, l.Triple())
		}
		out = append(out, hierarchyEntry{ID: id.Triple(), Links: triples})
	}
	return out
}

// Load reads every table from the blob store. Any failure leaves the
// instance not loaded, with all tables cleared, and returns a *LoadError.
func (i *Indexes) Load(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "index.Load", trace.WithAttributes(attribute.String("index.prefix", i.prefix)))
	defer func() {
		endSpan(span, err)
		i.recorder.Observe(ctx, "load", err == nil, time.Since(start))
	}()

	s := newState()
	for _, table := range Tables() {
		if err := i.loadTable(ctx, s, table); err != nil {
			i.publish(nil)
			return &LoadError{Table: table, Err: err}
		}
	}
	i.publish(s)
	i.logger.Info("indexes loaded", slog.String("prefix", i.prefix), slog.Int("compounds", len(s.registryToAccession)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (i *Indexes) loadTable(ctx context.Context, s *state, table string) error {
	_, rc, err := i.store.Get(ctx, i.Key(table))
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return s.decode(table, b)
}

func (s *state) decode(table string, b []byte) error {
	switch table {
	case TableSecondaryToRegistry:
		return json.Unmarshal(b, &s.secondaryToRegistry)
	case TableRegistryToSecondary:
		return json.Unmarshal(b, &s.registryToSecondary)
	case TableAccessionToRegistry:
		return json.Unmarshal(b, &s.accessionToRegistry)
	case TableRegistryToAccession:
		return json.Unmarshal(b, &s.registryToAccession)
	case TableRegistryPhase:
		return json.Unmarshal(b, &s.registryPhase)
	case TableSecondaryPhase:
		return json.Unmarshal(b, &s.secondaryPhase)
	case TableSourceNames:
		return json.Unmarshal(b, &s.sourceNames)
	case TableSecondarySources:
		var raw map[int64][]int64
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		for sec, ids := range raw {
			set := make(map[int64]struct{}, len(ids))
			for _, id := range ids {
				set[id] = struct{}{}
			}
			s.secondarySources[sec] = set
		}
		return nil
	case TableCompoundParents:
		return decodeHierarchy(b, s.parents)
	case TableCompoundChildren:
		return decodeHierarchy(b, s.children)
	}
	return fmt.Errorf("unknown table %q", table)
}

func decodeHierarchy(b []byte, into map[ident.Identifier]ident.Set) error {
	var entries []hierarchyEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		id := ident.FromTriple(e.ID)
		if id.IsZero() {
			return errors.New("hierarchy entry with empty identifier")
		}
		set, ok := into[id]
		if !ok {
			set = ident.NewSet()
			into[id] = set
		}
		for _, l := range e.Links {
			set.Add(ident.FromTriple(l))
		}
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
