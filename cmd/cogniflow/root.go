package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/core"
	"github.com/joseph-ayodele/cogniflow/internal/extract"
	"github.com/joseph-ayodele/cogniflow/internal/llm/openai"
	"github.com/joseph-ayodele/cogniflow/internal/render"
	"github.com/joseph-ayodele/cogniflow/internal/repository"
)

type rootOptions struct {
	envFile  string
	apiKey   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "cogniflow",
		Short: "Turn PDF documents into listening-friendly PDFs with an LLM",
		Long: `cogniflow extracts the text of a PDF, splits it into overlapping chunks,
rewrites every chunk through an OpenAI-compatible endpoint with model fallback
and retries, and renders the results into a new PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadDotEnv(opts.envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	cmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "API key (overrides stored settings and environment)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	cmd.AddCommand(
		newConvertCmd(opts),
		newResumeCmd(opts),
		newLogsCmd(opts),
		newSettingsCmd(opts),
		newExportCmd(opts),
		newResetCmd(opts),
		newDoctorCmd(opts),
	)
	return cmd
}

// app holds the wired dependencies for one command invocation.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	repo   *repository.SQLStore
	proc   *core.Processor
}

func newApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg := common.LoadConfig()
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, logOut)
	slog.SetDefault(logger)

	repo, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := extract.New(cfg.Extract, logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	client := openai.NewClient(openai.Config{BaseURL: cfg.LLM.BaseURL, Timeout: cfg.LLM.Timeout}, logger)

	proc := core.NewProcessor(logger, repo, extractor, client, render.NewPDF(logger),
		core.WithAPIKey(opts.apiKey),
		core.WithFallbackKeys(cfg.LLM.APIKeys...),
		core.WithModelSwitchDelay(cfg.LLM.ModelSwitchDelay),
	)
	return &app{cfg: cfg, logger: logger, repo: repo, proc: proc}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Error("failed to close store", "error", err)
	}
}

func newLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
