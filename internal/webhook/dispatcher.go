// Package webhook delivers outbound automation events with sequential retry,
// exponential backoff, and a durable audit trail.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Second
)

// genericPath receives events with no dedicated sub-path.
const genericPath = "/webhooks/generic"

// eventPaths maps event types to automation endpoint sub-paths.
var eventPaths = map[EventType]string{
	EventNewDocument:      "/webhooks/document",
	EventChatQuery:        "/webhooks/chat",
	EventContentGenerated: "/webhooks/content",
	EventMeetingSynced:    "/webhooks/meeting",
	EventAirtableUpdated:  "/webhooks/airtable",
}

// Config fixes the dispatcher behavior at construction time.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	Timeout    time.Duration
}

// Dispatcher posts events to the automation endpoint. One instance is built
// by the composition root and shared across all triggers; its configuration
// never changes per call.
type Dispatcher struct {
	baseURL    string
	apiKey     string
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client
	logs       *service.WebhookLogService
	sleep      func(time.Duration) // injectable for tests
}

// Result is the terminal outcome of one trigger.
type Result struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"execution_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// endpointResponse is the automation endpoint reply; the execution id is optional.
type endpointResponse struct {
	ExecutionID    string `json:"execution_id"`
	ExecutionIDAlt string `json:"executionId"`
}

// NewDispatcher creates the shared dispatcher.
func NewDispatcher(cfg *Config, logs *service.WebhookLogService) *Dispatcher {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Dispatcher{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		timeout:    timeout,
		httpClient: &http.Client{},
		logs:       logs,
		sleep:      time.Sleep,
	}
}

// Trigger delivers one event. Attempts are strictly sequential: attempt N+1
// starts only after attempt N has resolved or timed out, waiting 2^N seconds
// in between. Exhaustion is returned as a failed Result, never as a panic or
// an error escaping into unrelated request handling.
func (d *Dispatcher) Trigger(ctx context.Context, event *Event) Result {
	payload, err := MarshalPayload(event)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to marshal event: %v", err)}
	}

	endpoint := d.baseURL + pathFor(event.Type)

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		respBody, err := d.attempt(ctx, endpoint, payload)
		if err == nil {
			d.audit(event.Type, endpoint, payload, respBody, model.WebhookStatusSuccess)
			logx.Info("✅ Webhook delivered: type=%s, attempts=%d", event.Type, attempt)
			return Result{Success: true, ExecutionID: parseExecutionID(respBody)}
		}

		lastErr = err
		logx.Warn("Webhook attempt %d/%d failed: type=%s, err=%v", attempt, d.maxRetries, event.Type, err)

		if attempt < d.maxRetries {
			d.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}

	d.audit(event.Type, endpoint, payload, []byte(lastErr.Error()), model.WebhookStatusError)
	return Result{Success: false, Error: lastErr.Error()}
}

// attempt performs one HTTP delivery bounded by the per-attempt timeout, so a
// hung call cannot block subsequent retries.
func (d *Dispatcher) attempt(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("automation endpoint returned status %d", resp.StatusCode)
	}

	return body, nil
}

// audit writes one row per terminal outcome (not per retry).
func (d *Dispatcher) audit(eventType EventType, endpoint string, payload, response []byte, status string) {
	if d.logs == nil {
		return
	}

	err := d.logs.Create(&model.WebhookLog{
		Direction: "outbound",
		Endpoint:  endpoint,
		EventType: string(eventType),
		Payload:   string(payload),
		Response:  string(response),
		Status:    status,
	})
	if err != nil {
		logx.Error("Failed to write webhook audit log: %v", err)
	}
}

// pathFor maps an event type to its sub-path, falling back to the generic one.
func pathFor(eventType EventType) string {
	if path, ok := eventPaths[eventType]; ok {
		return path
	}
	return genericPath
}

// parseExecutionID extracts the optional execution identifier from the reply.
func parseExecutionID(body []byte) string {
	var resp endpointResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.ExecutionID != "" {
		return resp.ExecutionID
	}
	return resp.ExecutionIDAlt
}
