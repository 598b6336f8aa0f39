package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/runner"
	"github.com/dshills/docextract/internal/storage"
	"github.com/dshills/docextract/pkg/types"
)

// analyzeOutput is the JSON written by analyze and runs show
type analyzeOutput struct {
	RunID           string             `json:"run_id"`
	Source          string             `json:"source"`
	Status          storage.RunStatus  `json:"status"`
	Reused          bool               `json:"reused"`
	Provider        string             `json:"provider"`
	Model           string             `json:"model"`
	TotalChunks     int                `json:"total_chunks"`
	SucceededChunks int                `json:"succeeded_chunks"`
	FailedChunks    int                `json:"failed_chunks"`
	FailedPositions []int              `json:"failed_positions"`
	Error           string             `json:"error,omitempty"`
	Document        *types.Legislation `json:"document"`
}

func newAnalyzeCmd(g *globals) *cobra.Command {
	var (
		out        string
		force      bool
		minSuccess float64
		noValidate bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract a bill into a merged JSON document",
		Long: `Reads a UTF-8 text file, extracts it chunk by chunk and prints the merged
document as JSON. Identical content is answered from the last completed
run unless --force is given.

The command fails when fewer than --min-success of the chunks succeeded,
after writing the partial document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("min-success") {
				g.cfg.Extraction.MinSuccessRatio = minSuccess
			}
			if noValidate {
				g.cfg.Extraction.Validate = false
			}
			if err := g.cfg.Validate(); err != nil {
				return err
			}
			return runAnalyze(cmd, g, args[0], out, force)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON document to this file instead of stdout")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "analyze even when a completed run exists for identical content")
	cmd.Flags().Float64Var(&minSuccess, "min-success", 0, "minimum fraction of chunks that must succeed (0 accepts any)")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip the legislation pre-check")
	return cmd
}

func runAnalyze(cmd *cobra.Command, g *globals, path, out string, force bool) error {
	text, err := readText(path)
	if err != nil {
		return err
	}

	a, err := newApp(g.cfg, g.log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	outcome, err := a.runner.Analyze(cmd.Context(), runner.Request{Source: path, Text: text, Force: force})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	result := outputFor(outcome.Run)
	result.Reused = outcome.Reused
	if outcome.Result != nil {
		result.FailedPositions = outcome.Result.FailedPositions()
	} else if a.store != nil {
		records, err := a.store.ListChunkResults(cmd.Context(), outcome.Run.ID)
		if err != nil {
			return fmt.Errorf("failed to load chunk results: %w", err)
		}
		result.FailedPositions = failedPositions(records)
	}

	if err := writeJSON(cmd, out, result); err != nil {
		return err
	}
	return outcome.Check(g.cfg.Extraction.MinSuccessRatio)
}

// readText reads a UTF-8 text file
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if !utf8.Valid(data) {
		return "", errors.New("document is not valid UTF-8 text")
	}
	return string(data), nil
}

func outputFor(run *storage.Run) *analyzeOutput {
	return &analyzeOutput{
		RunID:           run.ID,
		Source:          run.Source,
		Status:          run.Status,
		Provider:        run.Provider,
		Model:           run.Model,
		TotalChunks:     run.TotalChunks,
		SucceededChunks: run.SucceededChunks,
		FailedChunks:    run.FailedChunks,
		FailedPositions: []int{},
		Error:           run.Error,
		Document:        run.Document,
	}
}

func failedPositions(records []*storage.ChunkRecord) []int {
	positions := []int{}
	for _, rec := range records {
		if rec.Status == storage.ChunkFailed {
			positions = append(positions, rec.Position)
		}
	}
	return positions
}

// writeJSON writes v as indented JSON to path, or to the command's output
// when path is empty
func writeJSON(cmd *cobra.Command, path string, v interface{}) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
