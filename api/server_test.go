package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/easydom/hellosure/internal/log"
)

func TestHealthEndpoint(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestReadyWithoutPool(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp, err := http.Get(server.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a database pool", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "test-id-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "test-id-42" {
		t.Errorf("X-Request-ID = %q, want the caller's ID echoed back", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s := NewServer(&scriptedChatter{}, nil, log.NewNop())
	s.mux.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 after a panic", resp.StatusCode)
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{err: errors.New("model unavailable")})

	resp := postChat(t, server, `{"messages":[{"role":"user","content":"domanda"}]}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 for an upstream failure", resp.StatusCode)
	}

	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.Contains(body.Error, "model unavailable") {
		t.Errorf("error = %q, want the upstream message", body.Error)
	}
}
