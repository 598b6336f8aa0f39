package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/config"
	"github.com/dshills/docextract/internal/storage"
)

func newRunsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored analysis runs",
	}
	cmd.AddCommand(newRunsListCmd(g), newRunsShowCmd(g))
	return cmd
}

func newRunsListCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := requireStorage(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if len(runs) == 0 {
				cmd.Println("No runs recorded")
				return nil
			}

			for _, run := range runs {
				cmd.Printf("%s  %-9s  %3d/%-3d chunks  %s  %s\n",
					run.ID, run.Status, run.SucceededChunks, run.TotalChunks,
					run.StartedAt.Local().Format(time.DateTime), run.Source)
			}
			cmd.Printf("\nTotal: %d runs\n", len(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "maximum number of runs")
	return cmd
}

func newRunsShowCmd(g *globals) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored run and its document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireStorage(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}
			records, err := store.ListChunkResults(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("failed to load chunk results: %w", err)
			}

			result := outputFor(run)
			result.FailedPositions = failedPositions(records)
			return writeJSON(cmd, out, result)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON to this file instead of stdout")
	return cmd
}

func requireStorage(cfg *config.Config) (storage.Storage, error) {
	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("storage is disabled in the configuration")
	}
	return store, nil
}
