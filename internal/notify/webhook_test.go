package notify

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/manifest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebhookNotifier_NilConfig(t *testing.T) {
	assert.Nil(t, NewWebhookNotifier(nil, nil))
}

func TestNewWebhookNotifier_EmptyURLs(t *testing.T) {
	assert.Nil(t, NewWebhookNotifier(&WebhookConfig{URLs: nil}, nil))
}

func TestWebhookNotifier_NilReceiver(t *testing.T) {
	// Should not panic
	var wn *WebhookNotifier
	wn.NotifyReindex(manifest.Stats{})
	wn.Wait()
}

func TestWebhookNotifier_NotifyReindex(t *testing.T) {
	var mu sync.Mutex
	var received []WebhookEvent

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event WebhookEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	wn := NewWebhookNotifier(&WebhookConfig{URLs: []string{ts.URL}}, nil)
	require.NotNil(t, wn)

	loadedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	wn.NotifyReindex(manifest.Stats{Generation: 7, Table: "DestinyInventoryItemDefinition", Indexed: 42, LoadedAt: loadedAt})
	wn.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "reindex", received[0].Event)
	assert.Equal(t, uint64(7), received[0].Generation)
	assert.Equal(t, "DestinyInventoryItemDefinition", received[0].Table)
	assert.Equal(t, 42, received[0].Indexed)
	assert.True(t, loadedAt.Equal(received[0].LoadedAt))
	assert.NotEmpty(t, received[0].Timestamp)
}

func TestWebhookNotifier_MultipleURLs(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	ts1 := httptest.NewServer(handler)
	defer ts1.Close()
	ts2 := httptest.NewServer(handler)
	defer ts2.Close()

	wn := NewWebhookNotifier(&WebhookConfig{URLs: []string{ts1.URL, ts2.URL}}, nil)
	require.NotNil(t, wn)

	wn.NotifyReindex(manifest.Stats{Generation: 1})
	wn.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookNotifier_Post_4xxNoRetry(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	wn := NewWebhookNotifier(&WebhookConfig{URLs: []string{ts.URL}}, nil)
	require.NotNil(t, wn)

	err := wn.post(ts.URL, []byte(`{}`))
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load()) // no retry for 4xx
}

func TestWebhookNotifier_Post_5xxRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	wn := NewWebhookNotifier(&WebhookConfig{URLs: []string{ts.URL}}, nil)
	require.NotNil(t, wn)
	wn.retryDelay = time.Millisecond

	require.NoError(t, wn.post(ts.URL, []byte(`{}`)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookNotifier_Post_NoDelayAfterLastAttempt(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	wn := NewWebhookNotifier(&WebhookConfig{URLs: []string{ts.URL}}, nil)
	require.NotNil(t, wn)
	wn.retryDelay = 150 * time.Millisecond

	start := time.Now()
	err := wn.post(ts.URL, []byte(`{}`))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Equal(t, int32(3), calls.Load())
	// Waits 1x and 2x the delay between attempts, nothing after the third
	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond)
	assert.Less(t, elapsed, 800*time.Millisecond)
}
