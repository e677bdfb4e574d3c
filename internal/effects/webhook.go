package effects

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// Webhooks sends a GET request to BaseURL plus the configured path per event
type Webhooks struct {
	cfg       config.WebhooksConfig
	proxyMode bool
	client    *http.Client
	logger    *zap.Logger
}

// NewWebhooks creates the webhook collaborator
func NewWebhooks(cfg config.WebhooksConfig, proxyMode bool, logger *zap.Logger) *Webhooks {
	return &Webhooks{
		cfg:       cfg,
		proxyMode: proxyMode,
		client:    &http.Client{Timeout: cfg.Timeout()},
		logger:    logger.Named("webhooks"),
	}
}

func (w *Webhooks) Name() string { return "webhooks" }

// Handle implements Collaborator
func (w *Webhooks) Handle(ctx context.Context, ev alarm.Event) error {
	if ev.Replay || suppressed(w.proxyMode, ev.Origin) {
		return nil
	}

	path := lookup(w.cfg.Target, w.cfg.Current, ev)
	if path == "" {
		return nil
	}
	url := strings.TrimRight(w.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling webhook %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode)
	}

	w.logger.Debug("Webhook sent",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))
	return nil
}
