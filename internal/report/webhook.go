package report

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/scenario"
)

// SignatureHeader carries the hex HMAC-SHA256 of the payload when a secret
// is configured.
const SignatureHeader = "X-Flowcheck-Signature"

// EventScenarioFinished is the only event type sent today.
const EventScenarioFinished = "scenario.finished"

// Event is one webhook payload.
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Data      ScenarioInfo `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
}

// ScenarioInfo is the JSON form of a scenario result.
type ScenarioInfo struct {
	Name       string     `json:"name"`
	RunID      string     `json:"run_id"`
	Passed     bool       `json:"passed"`
	DurationMS int64      `json:"duration_ms"`
	Steps      []StepInfo `json:"steps"`
}

// StepInfo is the JSON form of a step result.
type StepInfo struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Cleanup bool   `json:"cleanup,omitempty"`
}

// Delivery records one delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	URL        string
	Secret     string
	MaxRetries int
	RetryDelay time.Duration
	Client     *http.Client
	Logger     *zap.Logger
}

// Webhook is a scenario.Observer that queues a summary of every finished
// scenario and posts them to a URL on Flush.
type Webhook struct {
	mu         sync.Mutex
	cfg        WebhookConfig
	queue      []Event
	deliveries []Delivery
}

// NewWebhook creates a Webhook. Zero retry settings default to three
// attempts one second apart.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Webhook{cfg: cfg}
}

func (w *Webhook) ScenarioStarted(string, string) {}

func (w *Webhook) StepFinished(string, scenario.StepResult) {}

func (w *Webhook) ScenarioFinished(result *scenario.Result) {
	info := ScenarioInfo{
		Name:       result.ScenarioName,
		RunID:      result.RunID,
		Passed:     result.Passed,
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, sr := range result.Steps {
		info.Steps = append(info.Steps, StepInfo{
			Name:    sr.Name,
			Status:  string(sr.Status),
			Kind:    string(sr.Kind),
			Message: sr.Message(),
			Cleanup: sr.Cleanup,
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = append(w.queue, Event{
		ID:        result.RunID,
		Type:      EventScenarioFinished,
		Data:      info,
		CreatedAt: time.Now().UTC(),
	})
}

// Flush delivers every queued event in order and empties the queue. It
// returns the last delivery error.
func (w *Webhook) Flush(ctx context.Context) error {
	w.mu.Lock()
	events := w.queue
	w.queue = nil
	w.mu.Unlock()

	var lastErr error
	for _, evt := range events {
		if err := w.deliver(ctx, evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Deliveries returns every delivery attempt so far.
func (w *Webhook) Deliveries() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Delivery, len(w.deliveries))
	copy(out, w.deliveries)
	return out
}

// Queued returns the events not yet flushed.
func (w *Webhook) Queued() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Event, len(w.queue))
	copy(out, w.queue)
	return out
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *Webhook) deliver(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		status, err := w.post(ctx, payload)
		d := Delivery{EventID: evt.ID, StatusCode: status, Attempt: attempt, Timestamp: time.Now().UTC()}
		if err == nil && status >= 200 && status < 300 {
			w.record(d)
			w.cfg.Logger.Debug("webhook delivered", zap.String("event_id", evt.ID), zap.Int("attempt", attempt))
			return nil
		}
		if err == nil {
			err = fmt.Errorf("webhook delivery failed: status %d", status)
		}
		d.Error = err.Error()
		w.record(d)
		lastErr = err
		w.cfg.Logger.Warn("webhook delivery failed",
			zap.String("event_id", evt.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < w.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.RetryDelay):
			}
		}
	}
	return lastErr
}

func (w *Webhook) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, w.cfg.Secret))
	}

	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (w *Webhook) record(d Delivery) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deliveries = append(w.deliveries, d)
}
