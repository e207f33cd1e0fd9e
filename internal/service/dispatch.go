package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// chatMessage mirrors the provider's multimodal chat message format.
type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatRequest is the request body for one model attempt.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

// attemptOutcome is the uniform per-attempt result classification.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	// outcomeRetryable means the same model is worth another attempt
	// (rate limit or timeout).
	outcomeRetryable
	// outcomeFatal abandons the current model and advances to the next
	// candidate.
	outcomeFatal
)

// Dispatcher tries an ordered list of candidate models against the provider,
// retrying transient failures per model and falling back across models.
// Calls are strictly sequential; no speculative parallel requests.
type Dispatcher struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client

	maxAttempts   int
	retryDelay    time.Duration
	timeoutDelay  time.Duration
	fallbackPause time.Duration
}

// NewDispatcher creates a dispatcher over the primary model followed by the
// configured fallbacks.
func NewDispatcher(apiKey, baseURL, primaryModel string, fallbacks []string) *Dispatcher {
	models := append([]string{primaryModel}, fallbacks...)
	return &Dispatcher{
		apiKey:        apiKey,
		baseURL:       baseURL,
		models:        models,
		client:        &http.Client{Timeout: 30 * time.Second},
		maxAttempts:   3,
		retryDelay:    2 * time.Second,
		timeoutDelay:  time.Second,
		fallbackPause: 500 * time.Millisecond,
	}
}

// Dispatch sends the prompt and base64-encoded JPEG to each candidate model
// in order and returns the first successful raw response body. Determinism is
// aspirational: low temperature and top_p are requested, but callers must not
// assume byte-identical output across calls.
func (d *Dispatcher) Dispatch(ctx context.Context, imageBase64, prompt string) (string, error) {
	var lastErr error

	for i, model := range d.models {
		raw, err := d.tryModel(ctx, model, imageBase64, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		log.Printf("[Dispatcher] model %s failed: %v", model, err)

		if ctx.Err() != nil {
			break
		}
		if i < len(d.models)-1 {
			time.Sleep(d.fallbackPause)
		}
	}

	msg := "all candidate models exhausted"
	return "", wrapAnalysisError(KindModelUnavailable, msg, lastErr)
}

// tryModel runs the per-model retry loop.
func (d *Dispatcher) tryModel(ctx context.Context, model, imageBase64, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		raw, outcome, err := d.attempt(ctx, model, imageBase64, prompt)
		switch outcome {
		case outcomeSuccess:
			return raw, nil
		case outcomeRetryable:
			lastErr = err
			if attempt < d.maxAttempts {
				time.Sleep(d.backoff(err, attempt))
			}
		case outcomeFatal:
			return "", err
		}
		if ctx.Err() != nil {
			return "", wrapAnalysisError(KindTransient, "request cancelled", ctx.Err())
		}
	}
	return "", wrapAnalysisError(KindTransient, fmt.Sprintf("model %s: retry budget exhausted", model), lastErr)
}

// backoff picks the inter-attempt delay: linear for rate limits, a short
// fixed pause for timeouts.
func (d *Dispatcher) backoff(err error, attempt int) time.Duration {
	if isTimeout(err) {
		return d.timeoutDelay
	}
	return d.retryDelay * time.Duration(attempt)
}

// attempt performs a single HTTP round trip and classifies the result.
func (d *Dispatcher) attempt(ctx context.Context, model, imageBase64, prompt string) (string, attemptOutcome, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{
						URL: "data:image/jpeg;base64," + imageBase64,
					}},
				},
			},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
		TopP:        0.9,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", outcomeFatal, wrapAnalysisError(KindTransient, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", outcomeFatal, wrapAnalysisError(KindTransient, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", outcomeRetryable, wrapAnalysisError(KindTransient, fmt.Sprintf("model %s: request timed out", model), err)
		}
		return "", outcomeFatal, wrapAnalysisError(KindTransient, fmt.Sprintf("model %s: network error", model), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", outcomeFatal, wrapAnalysisError(KindTransient, fmt.Sprintf("model %s: failed to read response", model), err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", outcomeRetryable, newAnalysisError(KindTransient, fmt.Sprintf("model %s: rate limited", model))
	case resp.StatusCode >= http.StatusInternalServerError:
		// Server-side errors get the full retry budget before fallback.
		return "", outcomeRetryable, newAnalysisError(KindTransient, fmt.Sprintf("model %s: status %d", model, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", outcomeFatal, newAnalysisError(KindTransient, fmt.Sprintf("model %s: status %d", model, resp.StatusCode))
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", outcomeFatal, wrapAnalysisError(KindTransient, fmt.Sprintf("model %s: malformed envelope", model), err)
	}
	if len(envelope.Choices) == 0 {
		return "", outcomeFatal, newAnalysisError(KindTransient, fmt.Sprintf("model %s: empty choices", model))
	}

	return envelope.Choices[0].Message.Content, outcomeSuccess, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
