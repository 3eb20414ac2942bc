package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTriggerSignsRequest(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/webhooks/trigger", r.URL.Path)
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL + "/", SigningSecret: "s3cret", HTTP: srv.Client()}
	tr := sampleTrigger()
	status, _, err := c.Trigger(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)

	assert.Equal(t, tr.ID, gotHeader.Get(HeaderTriggerID))
	assert.True(t, VerifySignature("s3cret", gotHeader.Get(HeaderTimestamp), gotHeader.Get(HeaderSignature), gotBody))

	var req map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "EMAIL_DELIVERED", req["type"])
	assert.EqualValues(t, 7, req["teamId"])
}

func TestClientTriggerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	status, body, err := c.Trigger(context.Background(), sampleTrigger())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "nope")
	assert.True(t, ShouldRetry(err, status))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(errors.New("x"), 500))
	assert.True(t, ShouldRetry(errors.New("x"), 429))
	assert.True(t, ShouldRetry(errors.New("x"), 408))
	assert.False(t, ShouldRetry(errors.New("x"), 400))
	assert.False(t, ShouldRetry(errors.New("x"), 404))
	assert.True(t, ShouldRetry(context.DeadlineExceeded, 0))
	assert.False(t, ShouldRetry(errors.New("marshal"), 0))
}

func TestBackoffBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := -1; attempt < 40; attempt++ {
		d := Backoff(attempt, rng)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Second)
	}
}
