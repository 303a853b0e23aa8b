package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"chemident/internal/blob"
	"chemident/internal/config"
	"chemident/internal/index"
)

var (
	// Global flags
	configPath string
	jsonOut    bool
	verbose    bool
	logFormat  string
)

// errNoMatch is returned when a query finds nothing for the selected compound.
var errNoMatch = errors.New("no match")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chemident",
		Short: "Build and query the ChEMBL identifier cross-reference index",
		Long: `chemident extracts registry numbers, accession IDs and secondary IDs from a
ChEMBL-style relational source, persists the cross-reference tables to a blob
store, and answers lookups against the persisted tables.

Settings come from --config (YAML) and CHEMIDENT_* environment variables.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(
		newBuildCmd(),
		newResolveCmd(),
		newHierarchyCmd("parents", "List the parents of a compound", (*index.Indexes).Parents),
		newHierarchyCmd("children", "List the children of a compound", (*index.Indexes).Children),
		newPhaseCmd(),
		newSourcesCmd(),
		newDescribeCmd(),
		newTablesCmd(),
	)
	return root
}

// env bundles what every command needs after flag parsing.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), logFormat, verbose)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}, nil
}

func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if debug {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// openStore opens the configured blob store; the returned func releases it.
func (e *env) openStore(ctx context.Context) (blob.Store, func(), error) {
	store, err := blob.OpenConfig(ctx, e.cfg.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, func() {
		if err := blob.Close(store); err != nil {
			e.logger.Warn("close blob store", slog.Any("error", err))
		}
	}, nil
}

// openIndexes loads the persisted indexes for a query command.
func (e *env) openIndexes(ctx context.Context) (*index.Indexes, func(), error) {
	store, release, err := e.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.Open(ctx, store, index.WithPrefix(e.cfg.Index.Prefix), index.WithLogger(e.logger))
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%w (run chemident build first)", err)
	}
	return idx, release, nil
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
