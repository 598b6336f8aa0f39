package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/config"
	"github.com/dshills/docextract/internal/logging"
)

// globals holds state shared by every subcommand, filled in by the root
// command before any subcommand runs
type globals struct {
	configPath string
	envFiles   []string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "docextract",
		Short: "Extract structured data from legislative bills",
		Long: `docextract splits a bill into overlapping token chunks, extracts each
chunk concurrently under a shared rate limit and merges the partial
results into one JSON document.

Configuration is read from --config (YAML), then .env files, then
DOCEXTRACT_* and OPENAI_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "dotenv files to load (missing files are skipped)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newAnalyzeCmd(g),
		newChunksCmd(g),
		newRunsCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globals) load(cmd *cobra.Command) error {
	if err := config.LoadDotenv(g.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}

	log, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	g.cfg = cfg
	g.log = log
	return nil
}
