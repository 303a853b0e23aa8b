// Package index builds, persists and queries the cross-reference indexes
// between registry numbers, accession IDs and secondary IDs.
//
// An Indexes value is empty until Build or Load succeeds. Queries on an empty
// instance report misses rather than failing, and Loaded tells callers which
// state they are in.
package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chemident/internal/blob"
	"chemident/internal/observability"
	"chemident/pkg/ident"
)

// Table names, in persistence order.
const (
	TableSecondaryToRegistry = "secondary_to_registry"
	TableRegistryToSecondary = "registry_to_secondary"
	TableAccessionToRegistry = "accession_to_registry"
	TableRegistryToAccession = "registry_to_accession"
	TableRegistryPhase       = "registry_phase"
	TableSecondaryPhase      = "secondary_phase"
	TableSourceNames         = "source_names"
	TableSecondarySources    = "secondary_sources"
	TableCompoundParents     = "compound_parents"
	TableCompoundChildren    = "compound_children"
)

// DefaultPrefix is the blob key prefix tables are stored under.
const DefaultPrefix = "indexes"

// noPhase sits below every valid phase so two optional phases can be
// combined with a plain max.
const noPhase = -5

var (
	// ErrNotLoaded is returned by operations that need built or loaded indexes.
	ErrNotLoaded = errors.New("index: not loaded")
	// ErrLoad is matched by every *LoadError.
	ErrLoad = errors.New("index: load failed")
	// ErrValue is returned (wrapped) when a source row holds an unusable value.
	ErrValue = errors.New("index: bad source value")
)

// LoadError reports the table whose load failed.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string { return "index: load " + e.Table + ": " + e.Err.Error() }

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// Tables lists every table name in persistence order.
func Tables() []string {
	return []string{
		TableSecondaryToRegistry,
		TableRegistryToSecondary,
		TableAccessionToRegistry,
		TableRegistryToAccession,
		TableRegistryPhase,
		TableSecondaryPhase,
		TableSourceNames,
		TableSecondarySources,
		TableCompoundParents,
		TableCompoundChildren,
	}
}

// state holds one complete generation of the maps. It is never mutated after
// it has been published on an Indexes.
type state struct {
	secondaryToRegistry map[int64]int64
	registryToSecondary map[int64]int64
	accessionToRegistry map[string]int64
	registryToAccession map[int64]string
	registryPhase       map[int64]int
	secondaryPhase      map[int64]int
	sourceNames         map[int64]string
	secondarySources    map[int64]map[int64]struct{}
	parents             map[ident.Identifier]ident.Set
	children            map[ident.Identifier]ident.Set
}

func newState() *state {
	return &state{
		secondaryToRegistry: make(map[int64]int64),
		registryToSecondary: make(map[int64]int64),
		accessionToRegistry: make(map[string]int64),
		registryToAccession: make(map[int64]string),
		registryPhase:       make(map[int64]int),
		secondaryPhase:      make(map[int64]int),
		sourceNames:         make(map[int64]string),
		secondarySources:    make(map[int64]map[int64]struct{}),
		parents:             make(map[ident.Identifier]ident.Set),
		children:            make(map[ident.Identifier]ident.Set),
	}
}

func (s *state) counts() map[string]int {
	return map[string]int{
		TableSecondaryToRegistry: len(s.secondaryToRegistry),
		TableRegistryToSecondary: len(s.registryToSecondary),
		TableAccessionToRegistry: len(s.accessionToRegistry),
		TableRegistryToAccession: len(s.registryToAccession),
		TableRegistryPhase:       len(s.registryPhase),
		TableSecondaryPhase:      len(s.secondaryPhase),
		TableSourceNames:         len(s.sourceNames),
		TableSecondarySources:    len(s.secondarySources),
		TableCompoundParents:     len(s.parents),
		TableCompoundChildren:    len(s.children),
	}
}

// Indexes is the index store. It is safe for concurrent readers; Build and
// Load replace the whole state at once.
type Indexes struct {
	store    blob.Store
	prefix   string
	logger   *slog.Logger
	recorder observability.Recorder
	tracer   trace.Tracer

	mu    sync.RWMutex
	state *state
}

// Option configures an Indexes.
type Option func(*Indexes)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *Indexes) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(i *Indexes) {
		if r != nil {
			i.recorder = r
		}
	}
}

// WithPrefix sets the blob key prefix tables are saved under.
func WithPrefix(prefix string) Option {
	return func(i *Indexes) {
		if prefix != "" {
			i.prefix = prefix
		}
	}
}

// WithTracer sets the OpenTelemetry tracer used for Build, Save and Load spans.
func WithTracer(t trace.Tracer) Option {
	return func(i *Indexes) {
		if t != nil {
			i.tracer = t
		}
	}
}

// New returns an empty, not loaded Indexes persisting through store.
func New(store blob.Store, opts ...Option) *Indexes {
	i := &Indexes{
		store:    store,
		prefix:   DefaultPrefix,
		logger:   slog.Default(),
		recorder: observability.Noop{},
		tracer:   otel.Tracer("chemident/index"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Open creates an Indexes and loads it from store. On failure the instance is
// still returned, empty, together with the *LoadError.
func Open(ctx context.Context, store blob.Store, opts ...Option) (*Indexes, error) {
	i := New(store, opts...)
	if err := i.Load(ctx); err != nil {
		i.logger.Warn("indexes unavailable", slog.String("prefix", i.prefix), slog.Any("error", err))
		return i, err
	}
	return i, nil
}

// Loaded reports whether a Build or Load has succeeded and not been undone
// by a failed Load.
func (i *Indexes) Loaded() bool {
	return i.current() != nil
}

// Prefix returns the blob key prefix.
func (i *Indexes) Prefix() string { return i.prefix }

// Stats returns the entry count of every table; nil when not loaded.
func (i *Indexes) Stats() map[string]int {
	s := i.current()
	if s == nil {
		return nil
	}
	return s.counts()
}

func (i *Indexes) current() *state {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Indexes) publish(s *state) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
	if s == nil {
		for _, table := range Tables() {
			i.recorder.SetEntries(table, 0)
		}
		return
	}
	for table, n := range s.counts() {
		i.recorder.SetEntries(table, n)
	}
}
