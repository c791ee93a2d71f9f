// Package testutil provides testing utilities for the owner lookup client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// FakeResponse defines the behavior for one fake generateContent response.
type FakeResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// FakeGemini is a configurable stand-in for the generative language API.
// Responses are queued per call; when the queue is empty the default
// response is served.
type FakeGemini struct {
	server *httptest.Server

	mu       sync.Mutex
	queue    []FakeResponse
	fallback FakeResponse
	handler  func(w http.ResponseWriter, r *http.Request, prompt string)

	// Tracking
	RequestCount int
	LastAPIKey   string
	LastPath     string
	LastPrompt   string
	LastBody     map[string]any
}

// NewFakeGemini starts a fake server that answers with an owner by default.
func NewFakeGemini() *FakeGemini {
	f := &FakeGemini{
		fallback: NewOwnerResponse("Jane", "Doe", "https://example.com/about", "High"),
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		prompt := promptFrom(body)

		f.mu.Lock()
		f.RequestCount++
		f.LastAPIKey = r.Header.Get("x-goog-api-key")
		f.LastPath = r.URL.Path
		f.LastPrompt = prompt
		f.LastBody = body

		handler := f.handler
		resp := f.fallback
		if len(f.queue) > 0 {
			resp = f.queue[0]
			f.queue = f.queue[1:]
		}
		f.mu.Unlock()

		if handler != nil {
			handler(w, r, prompt)
			return
		}
		write(w, resp)
	}))

	return f
}

// URL returns the fake server URL, suitable as a client BaseURL.
func (f *FakeGemini) URL() string {
	return f.server.URL
}

// Close shuts down the fake server.
func (f *FakeGemini) Close() {
	f.server.Close()
}

// Enqueue adds responses served in order before the default one.
func (f *FakeGemini) Enqueue(responses ...FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, responses...)
}

// SetDefault replaces the response served when the queue is empty.
func (f *FakeGemini) SetDefault(resp FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = resp
}

// SetHandler overrides all canned behavior with a custom handler that also
// receives the prompt text.
func (f *FakeGemini) SetHandler(handler func(w http.ResponseWriter, r *http.Request, prompt string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

// GetRequestCount returns the number of requests made to the server.
func (f *FakeGemini) GetRequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RequestCount
}

// GetLastPrompt returns the prompt text of the most recent request.
func (f *FakeGemini) GetLastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LastPrompt
}

func write(w http.ResponseWriter, resp FakeResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func promptFrom(body map[string]any) string {
	contents, _ := body["contents"].([]any)
	var b strings.Builder
	for _, c := range contents {
		cm, _ := c.(map[string]any)
		parts, _ := cm["parts"].([]any)
		for _, p := range parts {
			pm, _ := p.(map[string]any)
			if s, ok := pm["text"].(string); ok {
				b.WriteString(s)
			}
		}
	}
	return b.String()
}

// NewTextResponse wraps model text in a generateContent envelope.
func NewTextResponse(text string) FakeResponse {
	envelope := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
	data, _ := json.Marshal(envelope)
	return FakeResponse{StatusCode: http.StatusOK, Body: string(data)}
}

// NewBlockedResponse answers with a candidate that carries no text, as the
// API does when a safety or recitation filter stops generation.
func NewBlockedResponse(finishReason string) FakeResponse {
	data, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"finishReason": finishReason},
		},
	})
	return FakeResponse{StatusCode: http.StatusOK, Body: string(data)}
}

// NewOwnerResponse answers with a fenced JSON owner block.
func NewOwnerResponse(first, last, source, confidence string) FakeResponse {
	answer, _ := json.Marshal(map[string]string{
		"first_name": first,
		"last_name":  last,
		"source":     source,
		"confidence": confidence,
	})
	return NewTextResponse(fmt.Sprintf("Here is what I found:\n```json\n%s\n```", answer))
}

// NewNotFoundResponse answers with the model's "Not Found" JSON.
func NewNotFoundResponse() FakeResponse {
	return NewOwnerResponse("Not Found", "", "AI Investigation", "Low")
}

// NewErrorResponse builds an API error payload.
func NewErrorResponse(status int, message string) FakeResponse {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  http.StatusText(status),
		},
	})
	return FakeResponse{StatusCode: status, Body: string(data)}
}

// NewLeakedKeyResponse reproduces the upstream answer for a revoked key.
func NewLeakedKeyResponse() FakeResponse {
	return NewErrorResponse(http.StatusForbidden, "Your API key was reported as leaked. Please use another API key.")
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfter string) FakeResponse {
	resp := NewErrorResponse(http.StatusTooManyRequests, "Resource has been exhausted (e.g. check quota).")
	resp.Headers = map[string]string{"Retry-After": retryAfter}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() FakeResponse {
	return NewErrorResponse(http.StatusInternalServerError, "Internal error encountered.")
}
