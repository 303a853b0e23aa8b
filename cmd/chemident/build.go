package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"chemident/internal/index"
	"chemident/internal/observability"
	"chemident/internal/source"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Extract the indexes from the source database and save them",
		Long: `The build command runs every catalogue query against the configured source,
builds the cross-reference tables and writes them to the blob store under the
index prefix, replacing any previous generation.

Example:
  CHEMIDENT_SOURCE_DSN=chembl_34.db chemident build
  chemident build --config chemident.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			return runBuild(cmd, e)
		},
	}
}

type buildReport struct {
	Prefix   string         `json:"prefix"`
	Driver   string         `json:"blob_driver"`
	Tables   map[string]int `json:"tables"`
	Duration string         `json:"duration"`
}

func runBuild(cmd *cobra.Command, e *env) error {
	ctx := cmd.Context()
	start := time.Now()

	reg := prometheus.NewRegistry()
	rec, err := observability.New(e.cfg.Metrics.Driver, reg)
	if err != nil {
		return err
	}

	src, err := source.OpenConfig(ctx, e.cfg.Source)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	store, release, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	idx := index.New(store,
		index.WithPrefix(e.cfg.Index.Prefix),
		index.WithLogger(e.logger),
		index.WithRecorder(rec))
	if err := idx.Build(ctx, src); err != nil {
		return err
	}
	if err := idx.Save(ctx); err != nil {
		return err
	}

	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := observability.WriteTextfile(path, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		e.logger.Debug("metrics written", slog.String("path", path))
	}

	report := buildReport{
		Prefix:   idx.Prefix(),
		Driver:   string(store.Driver()),
		Tables:   idx.Stats(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if jsonOut {
		return e.printJSON(report)
	}
	e.printf("Saved indexes to %s (%s) in %s\n", report.Prefix, report.Driver, report.Duration)
	for _, table := range index.Tables() {
		e.printf("  %-24s %d\n", table, report.Tables[table])
	}
	return nil
}
