// Package notify tells external services that a new manifest index is live.
package notify

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/goccy/go-json"
)

// WebhookEvent represents the payload sent to webhook URLs.
type WebhookEvent struct {
	Event      string    `json:"event"`
	Generation uint64    `json:"generation"`
	Table      string    `json:"table"`
	Indexed    int       `json:"indexed"`
	LoadedAt   time.Time `json:"loaded_at"`
	Timestamp  string    `json:"timestamp"`
}

// WebhookConfig holds the list of configured webhook URLs.
type WebhookConfig struct {
	URLs []string
}

// WebhookNotifier sends HTTP POST notifications to configured webhook URLs.
type WebhookNotifier struct {
	config     *WebhookConfig
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
	wg         sync.WaitGroup
}

// NewWebhookNotifier creates a webhook notifier. Returns nil if no URLs are configured.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	return &WebhookNotifier{
		config:     cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logging.Default(logger).With("component", "webhook"),
		retryDelay: time.Second,
	}
}

// NotifyReindex sends a reindex event to all configured webhook URLs.
// Runs asynchronously and does not block the caller.
func (wn *WebhookNotifier) NotifyReindex(stats manifest.Stats) {
	if wn == nil {
		return
	}

	event := &WebhookEvent{
		Event:      "reindex",
		Generation: stats.Generation,
		Table:      stats.Table,
		Indexed:    stats.Indexed,
		LoadedAt:   stats.LoadedAt,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	wn.wg.Add(1)
	go func() {
		defer wn.wg.Done()
		wn.send(event)
	}()
}

// Wait blocks until in-flight deliveries finish.
func (wn *WebhookNotifier) Wait() {
	if wn == nil {
		return
	}
	wn.wg.Wait()
}

// send delivers the webhook event to all configured URLs.
func (wn *WebhookNotifier) send(event *WebhookEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		wn.logger.Error("marshal event", "error", err)
		return
	}

	for _, url := range wn.config.URLs {
		if err := wn.post(url, data); err != nil {
			wn.logger.Warn("delivery failed", "url", url, "error", err)
		} else {
			wn.logger.Debug("delivered", "url", url, "event", event.Event, "generation", event.Generation)
		}
	}
}

// post sends a single webhook POST with retry (up to 2 retries).
func (wn *WebhookNotifier) post(url string, data []byte) error {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequest("POST", url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "d2armory/1.0")

		resp, err := wn.client.Do(req)
		if err != nil {
			lastErr = err
			wn.backoff(attempt, maxRetries)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr // don't retry 4xx
		}
		wn.backoff(attempt, maxRetries)
	}

	return lastErr
}

// backoff waits before the next attempt. There is nothing to wait for after
// the last one.
func (wn *WebhookNotifier) backoff(attempt, maxRetries int) {
	if attempt < maxRetries {
		time.Sleep(time.Duration(attempt+1) * wn.retryDelay)
	}
}
