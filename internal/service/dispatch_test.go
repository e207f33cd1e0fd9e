package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatchRecorder counts attempts per model and replies per the handler.
type dispatchRecorder struct {
	mu    sync.Mutex
	hits  map[string]int
	reply func(model string, hit int) (int, string)
}

func (r *dispatchRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.hits[body.Model]++
	hit := r.hits[body.Model]
	r.mu.Unlock()

	status, content := r.reply(body.Model, hit)
	w.WriteHeader(status)
	if status == http.StatusOK {
		fmt.Fprintf(w, `{"choices": [{"message": {"content": %q}}]}`, content)
	}
}

func newTestDispatcher(baseURL string, models []string) *Dispatcher {
	return &Dispatcher{
		apiKey:        "test-key",
		baseURL:       baseURL,
		models:        models,
		client:        &http.Client{Timeout: 5 * time.Second},
		maxAttempts:   3,
		retryDelay:    time.Millisecond,
		timeoutDelay:  time.Millisecond,
		fallbackPause: time.Millisecond,
	}
}

func TestDispatchFallsBackAfterRateLimit(t *testing.T) {
	rec := &dispatchRecorder{
		hits: map[string]int{},
		reply: func(model string, hit int) (int, string) {
			if model == "model-a" {
				return http.StatusTooManyRequests, ""
			}
			return http.StatusOK, "secondary response"
		},
	}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a", "model-b", "model-c"})
	raw, err := d.Dispatch(context.Background(), "aW1n", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "secondary response", raw)

	assert.Equal(t, 3, rec.hits["model-a"], "primary should use its full retry budget")
	assert.Equal(t, 1, rec.hits["model-b"])
	assert.Zero(t, rec.hits["model-c"], "a later candidate must not be tried after a success")
}

func TestDispatchExhaustsAllModels(t *testing.T) {
	rec := &dispatchRecorder{
		hits: map[string]int{},
		reply: func(model string, hit int) (int, string) {
			return http.StatusInternalServerError, ""
		},
	}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a", "model-b"})
	_, err := d.Dispatch(context.Background(), "aW1n", "prompt")
	require.Error(t, err)
	assert.Equal(t, KindModelUnavailable, ErrorKindOf(err))

	// Server errors get the full per-model retry budget, not one attempt.
	assert.Equal(t, 3, rec.hits["model-a"])
	assert.Equal(t, 3, rec.hits["model-b"])
}

func TestDispatchRecoversWithinRetryBudget(t *testing.T) {
	rec := &dispatchRecorder{
		hits: map[string]int{},
		reply: func(model string, hit int) (int, string) {
			if hit < 3 {
				return http.StatusTooManyRequests, ""
			}
			return http.StatusOK, "third time lucky"
		},
	}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a", "model-b"})
	raw, err := d.Dispatch(context.Background(), "aW1n", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", raw)
	assert.Equal(t, 3, rec.hits["model-a"])
	assert.Zero(t, rec.hits["model-b"])
}

func TestDispatchAbandonsModelOnClientError(t *testing.T) {
	rec := &dispatchRecorder{
		hits: map[string]int{},
		reply: func(model string, hit int) (int, string) {
			if model == "model-a" {
				return http.StatusBadRequest, ""
			}
			return http.StatusOK, "fallback response"
		},
	}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a", "model-b"})
	raw, err := d.Dispatch(context.Background(), "aW1n", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "fallback response", raw)
	assert.Equal(t, 1, rec.hits["model-a"], "a 4xx should not be retried on the same model")
}

func TestDispatchRequestShape(t *testing.T) {
	var (
		gotAuth string
		gotBody chatRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"choices": [{"message": {"content": "ok"}}]}`)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a"})
	_, err := d.Dispatch(context.Background(), "aW1n", "describe this meal")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "model-a", gotBody.Model)
	assert.Equal(t, 1000, gotBody.MaxTokens)
	assert.Equal(t, 0.3, gotBody.Temperature)
	assert.Equal(t, 0.9, gotBody.TopP)

	require.Len(t, gotBody.Messages, 1)
	require.Len(t, gotBody.Messages[0].Content, 2)
	assert.Equal(t, "describe this meal", gotBody.Messages[0].Content[0].Text)
	require.NotNil(t, gotBody.Messages[0].Content[1].ImageURL)
	assert.Equal(t, "data:image/jpeg;base64,aW1n", gotBody.Messages[0].Content[1].ImageURL.URL)
}

func TestDispatchEmptyChoicesAdvances(t *testing.T) {
	rec := &dispatchRecorder{
		hits: map[string]int{},
		reply: func(model string, hit int) (int, string) {
			return http.StatusOK, ""
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		rec.mu.Lock()
		rec.hits[body.Model]++
		rec.mu.Unlock()
		if body.Model == "model-a" {
			fmt.Fprint(w, `{"choices": []}`)
			return
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "real"}}]}`)
	}))
	defer srv.Close()

	d := newTestDispatcher(srv.URL, []string{"model-a", "model-b"})
	raw, err := d.Dispatch(context.Background(), "aW1n", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "real", raw)
	assert.Equal(t, 1, rec.hits["model-a"])
}
