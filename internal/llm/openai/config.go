package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the OpenAI-compatible chat/completions client.
type Config struct {
	BaseURL string        // default https://api.cerebras.ai/v1
	Timeout time.Duration // http client timeout, a ceiling above the per-request context timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cerebras.ai/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
