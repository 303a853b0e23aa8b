package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chemident/internal/blob"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the persisted index tables",
		Long: `The tables command lists the blobs stored under the index prefix together
with their size and entry count. It does not load the indexes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			return runTables(cmd, e)
		},
	}
}

type tableInfo struct {
	Key          string    `json:"key"`
	Table        string    `json:"table,omitempty"`
	Entries      string    `json:"entries,omitempty"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

func runTables(cmd *cobra.Command, e *env) error {
	ctx := cmd.Context()
	store, release, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	prefix := strings.TrimSuffix(e.cfg.Index.Prefix, "/") + "/"
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	out := make([]tableInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, toTableInfo(info))
	}
	if jsonOut {
		return e.printJSON(out)
	}
	if len(out) == 0 {
		e.printf("No tables under %s\n", prefix)
		return nil
	}
	for _, t := range out {
		e.printf("%-40s %8s entries %10d bytes\n", t.Key, t.Entries, t.Size)
	}
	return nil
}

func toTableInfo(info blob.Info) tableInfo {
	return tableInfo{
		Key:          info.Key,
		Table:        info.Metadata["table"],
		Entries:      info.Metadata["entries"],
		Size:         info.Size,
		LastModified: info.LastModified,
	}
}
