package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julianb233/acre-notebook-lm/internal/model"
	"github.com/Julianb233/acre-notebook-lm/internal/service"
	"github.com/Julianb233/acre-notebook-lm/internal/testutil"
)

// endpointRecorder captures deliveries and fails the first failures requests.
type endpointRecorder struct {
	mu       sync.Mutex
	failures int
	requests []recordedRequest
}

type recordedRequest struct {
	path string
	auth string
	body map[string]any
}

func (r *endpointRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		r.mu.Lock()
		r.requests = append(r.requests, recordedRequest{
			path: req.URL.Path,
			auth: req.Header.Get("Authorization"),
			body: body,
		})
		remaining := r.failures
		if r.failures > 0 {
			r.failures--
		}
		r.mu.Unlock()

		if remaining > 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"execution_id": "exec-42"}`))
	}
}

func (r *endpointRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// newTestDispatcher wires a dispatcher against the recorder with an
// instantaneous recorded sleep.
func newTestDispatcher(t *testing.T, rec *endpointRecorder, logs *service.WebhookLogService) (*Dispatcher, *[]time.Duration) {
	t.Helper()

	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	d := NewDispatcher(&Config{
		BaseURL:    server.URL,
		APIKey:     "secret-key",
		MaxRetries: 3,
		Timeout:    2 * time.Second,
	}, logs)

	var sleeps []time.Duration
	d.sleep = func(dur time.Duration) { sleeps = append(sleeps, dur) }
	return d, &sleeps
}

func TestTriggerDeliversOnFirstAttempt(t *testing.T) {
	rec := &endpointRecorder{}
	d, sleeps := newTestDispatcher(t, rec, nil)

	result := d.Trigger(context.Background(), &Event{
		Type:      EventNewDocument,
		PartnerID: "p1",
		Data:      NewDocumentData{DocumentID: "doc-1", FileName: "q3.pdf", FileType: "pdf"},
		Timestamp: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	})

	assert.True(t, result.Success)
	assert.Equal(t, "exec-42", result.ExecutionID)
	assert.Empty(t, *sleeps)

	require.Equal(t, 1, rec.count())
	got := rec.requests[0]
	assert.Equal(t, "/webhooks/document", got.path)
	assert.Equal(t, "Bearer secret-key", got.auth)
	assert.Equal(t, "new_document", got.body["type"])
	assert.Equal(t, "p1", got.body["partner_id"])
	assert.Equal(t, "2026-08-23T12:00:00Z", got.body["timestamp"])

	data, ok := got.body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doc-1", data["document_id"])
	assert.Equal(t, "q3.pdf", data["file_name"])
}

func TestTriggerRetriesWithExponentialBackoff(t *testing.T) {
	rec := &endpointRecorder{failures: 2}
	d, sleeps := newTestDispatcher(t, rec, nil)

	result := d.Trigger(context.Background(), &Event{
		Type:      EventChatQuery,
		PartnerID: "p1",
		Data:      ChatQueryData{SessionID: "s1", Query: "q3 revenue?"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestTriggerExhaustsRetriesAndAuditsOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	logs := service.NewWebhookLogService(db)

	rec := &endpointRecorder{failures: 10}
	d, sleeps := newTestDispatcher(t, rec, logs)

	result := d.Trigger(context.Background(), &Event{
		Type:      EventMeetingSynced,
		PartnerID: "p1",
		Data:      MeetingSyncedData{MeetingID: "mtg-1", Title: "Standup", DurationSeconds: 900},
	})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 3, rec.count())
	// No sleep after the final attempt.
	assert.Len(t, *sleeps, 2)

	// One audit row per terminal outcome, not per retry.
	rows, total, err := logs.List("", "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, model.WebhookStatusError, rows[0].Status)
	assert.Equal(t, "meeting_synced", rows[0].EventType)
	assert.Equal(t, "outbound", rows[0].Direction)
}

func TestTriggerAuditsSuccess(t *testing.T) {
	db := testutil.OpenTestDB(t)
	logs := service.NewWebhookLogService(db)

	rec := &endpointRecorder{}
	d, _ := newTestDispatcher(t, rec, logs)

	result := d.Trigger(context.Background(), &Event{
		Type:      EventContentGenerated,
		PartnerID: "p1",
		Data:      ContentGeneratedData{ContentID: "c1", ContentType: "report", Title: "Q3"},
	})
	require.True(t, result.Success)

	rows, total, err := logs.List("content_generated", model.WebhookStatusSuccess, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Payload, `"content_id":"c1"`)
	assert.Contains(t, rows[0].Response, "exec-42")
}

func TestTriggerRoutesUnknownEventToGenericPath(t *testing.T) {
	rec := &endpointRecorder{}
	d, _ := newTestDispatcher(t, rec, nil)

	result := d.Trigger(context.Background(), &Event{
		Type:      EventType("custom_event"),
		PartnerID: "p1",
		Data:      ChatQueryData{SessionID: "s1", Query: "q"},
	})
	require.True(t, result.Success)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, "/webhooks/generic", rec.requests[0].path)
}

func TestTriggerEventPathMapping(t *testing.T) {
	tests := []struct {
		event EventType
		path  string
	}{
		{EventNewDocument, "/webhooks/document"},
		{EventChatQuery, "/webhooks/chat"},
		{EventContentGenerated, "/webhooks/content"},
		{EventMeetingSynced, "/webhooks/meeting"},
		{EventAirtableUpdated, "/webhooks/airtable"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.path, pathFor(tt.event), "event %s", tt.event)
	}
}

func TestTriggerPerAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hang past the per-attempt timeout.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(&Config{
		BaseURL:    server.URL,
		MaxRetries: 2,
		Timeout:    50 * time.Millisecond,
	}, nil)
	d.sleep = func(time.Duration) {}

	start := time.Now()
	result := d.Trigger(context.Background(), &Event{
		Type:      EventNewDocument,
		PartnerID: "p1",
		Data:      NewDocumentData{DocumentID: "doc-1"},
	})

	assert.False(t, result.Success)
	// Two bounded attempts, not 2x the hang duration.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParseExecutionIDVariants(t *testing.T) {
	assert.Equal(t, "a", parseExecutionID([]byte(`{"execution_id": "a"}`)))
	assert.Equal(t, "b", parseExecutionID([]byte(`{"executionId": "b"}`)))
	assert.Empty(t, parseExecutionID([]byte(`{}`)))
	assert.Empty(t, parseExecutionID([]byte(`not json`)))
}
