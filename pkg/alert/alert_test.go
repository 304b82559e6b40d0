package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	name  string
	err   error
	calls int
	last  string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(ctx context.Context, message string, data map[string]string) error {
	f.calls++
	f.last = message
	return f.err
}

func TestDispatchFansOutToAllChannels(t *testing.T) {
	a := &fakeNotifier{name: "a"}
	b := &fakeNotifier{name: "b"}
	d := NewDispatcher(nil, a, b)

	d.Dispatch(context.Background(), "bundle failed", map[string]string{"bundle": "x"})

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "bundle failed", b.last)
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	failing := &fakeNotifier{name: "broken", err: errors.New("unreachable")}
	working := &fakeNotifier{name: "ok"}
	d := NewDispatcher(nil, failing, working)

	d.Dispatch(context.Background(), "bundle failed", nil)

	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls, "a failed channel must not block the others")
}

func TestDispatchNilSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), "ignored", nil)
	})
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var payload webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	n := NewWebhookNotifier(server.URL, time.Second)
	err := n.Notify(context.Background(), "bundle failed", map[string]string{"bundle": "x", "kind": "timeout"})
	require.NoError(t, err)

	assert.Equal(t, "bundle failed", payload.Text)
	assert.Equal(t, "timeout", payload.Fields["kind"])
}

func TestWebhookNotifierRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	n := NewWebhookNotifier(server.URL, time.Second)
	n.client.RetryWaitMin = time.Millisecond
	n.client.RetryWaitMax = 5 * time.Millisecond

	err := n.Notify(context.Background(), "bundle failed", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebhookNotifierRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	n := NewWebhookNotifier(server.URL, time.Second)
	err := n.Notify(context.Background(), "bundle failed", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
