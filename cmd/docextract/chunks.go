package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/chunker"
	"github.com/dshills/docextract/internal/tokenizer"
)

type chunkOutput struct {
	Position    int    `json:"position"`
	TokenCount  int    `json:"token_count"`
	End         int    `json:"end"`
	ContentHash string `json:"content_hash"`
}

type planOutput struct {
	Encoding    string        `json:"encoding"`
	TotalTokens int           `json:"total_tokens"`
	ChunkSize   int           `json:"chunk_size"`
	Overlap     int           `json:"overlap"`
	Chunks      []chunkOutput `json:"chunks"`
}

func newChunksCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chunks <file>",
		Short: "Show how a document would be chunked",
		Long:  `Tokenizes and chunks a document without calling the extraction provider.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args[0])
			if err != nil {
				return err
			}
			tok, err := tokenizer.New(g.cfg.Tokenizer.Encoding)
			if err != nil {
				return err
			}
			plan := chunker.New(tok, g.cfg.ChunkerOptions(), chunker.WithLogger(g.log)).Plan(text)

			out := planOutput{
				Encoding:    tok.Name(),
				TotalTokens: plan.TotalTokens,
				ChunkSize:   plan.ChunkSize,
				Overlap:     plan.Overlap,
				Chunks:      make([]chunkOutput, 0, len(plan.Chunks)),
			}
			for _, c := range plan.Chunks {
				out.Chunks = append(out.Chunks, chunkOutput{
					Position:    c.Position,
					TokenCount:  c.TokenCount,
					End:         c.End(),
					ContentHash: hex.EncodeToString(c.ContentHash[:]),
				})
			}

			if asJSON {
				return writeJSON(cmd, "", out)
			}

			cmd.Printf("Encoding:     %s\n", out.Encoding)
			cmd.Printf("Total tokens: %d\n", out.TotalTokens)
			cmd.Printf("Chunk size:   %d\n", out.ChunkSize)
			cmd.Printf("Overlap:      %d\n", out.Overlap)
			cmd.Printf("Chunks:       %d\n\n", len(out.Chunks))
			for _, c := range out.Chunks {
				cmd.Printf("  [%6d, %6d)  %5d tokens  %s\n", c.Position, c.End, c.TokenCount, shortHash(c.ContentHash))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output the plan as JSON")
	return cmd
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
