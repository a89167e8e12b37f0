package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/easydom/hellosure/internal/chat"
	"github.com/easydom/hellosure/internal/log"
)

// scriptedChatter replays a fixed sequence of events and a terminal error.
type scriptedChatter struct {
	events []chat.AnswerEvent
	err    error
}

func (s *scriptedChatter) Chat(_ context.Context, req *chat.Request) chat.Stream {
	return func(yield func(chat.AnswerEvent, error) bool) {
		if err := req.Validate(); err != nil {
			yield(chat.AnswerEvent{}, err)
			return
		}
		for _, ev := range s.events {
			if !yield(ev, nil) {
				return
			}
		}
		if s.err != nil {
			yield(chat.AnswerEvent{}, s.err)
		}
	}
}

func newChatServer(t *testing.T, chatter Chatter) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(chatter, nil, log.NewNop()).Handler())
	t.Cleanup(server.Close)
	return server
}

func postChat(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat error: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestChatAggregatesDeltas(t *testing.T) {
	chatter := &scriptedChatter{events: []chat.AnswerEvent{
		{ChoiceIndex: 0, Role: chat.RoleAssistant, ContentDelta: "Apri "},
		{ChoiceIndex: 0, Role: chat.RoleAssistant, ContentDelta: "l'app."},
	}}
	server := newChatServer(t, chatter)

	resp := postChat(t, server, `{"messages":[{"role":"user","content":"Come si configura Alexa?"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Error != "" {
		t.Fatalf("unexpected error field: %q", body.Error)
	}
	if len(body.Choices) != 1 {
		t.Fatalf("got %d choices, want 1", len(body.Choices))
	}
	choice := body.Choices[0]
	if choice.Index != 0 || choice.Message == nil {
		t.Fatalf("unexpected choice: %+v", choice)
	}
	if choice.Message.Content != "Apri l'app." {
		t.Errorf("content = %q, want concatenated deltas", choice.Message.Content)
	}
	if choice.Message.Role != chat.RoleAssistant {
		t.Errorf("role = %q, want assistant", choice.Message.Role)
	}
	if choice.Delta != nil {
		t.Error("aggregated responses must not carry deltas")
	}
}

func TestChatStreamsNDJSON(t *testing.T) {
	chatter := &scriptedChatter{events: []chat.AnswerEvent{
		{ChoiceIndex: 0, Role: chat.RoleAssistant, ContentDelta: "Apri "},
		{ChoiceIndex: 0, Role: chat.RoleAssistant, ContentDelta: "l'app."},
	}}
	server := newChatServer(t, chatter)

	resp := postChat(t, server, `{"messages":[{"role":"user","content":"domanda"}],"stream":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q, want application/x-ndjson", ct)
	}

	var deltas []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line ChatResponse
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		if line.Error != "" {
			t.Fatalf("unexpected error line: %q", line.Error)
		}
		if len(line.Choices) != 1 || line.Choices[0].Delta == nil {
			t.Fatalf("unexpected stream line: %+v", line)
		}
		deltas = append(deltas, line.Choices[0].Delta.Content)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading stream: %v", err)
	}

	if strings.Join(deltas, "") != "Apri l'app." {
		t.Errorf("streamed deltas = %v", deltas)
	}
}

func TestChatStreamTerminalError(t *testing.T) {
	chatter := &scriptedChatter{
		events: []chat.AnswerEvent{
			{ChoiceIndex: 0, Role: chat.RoleAssistant, ContentDelta: "Inizio"},
		},
		err: chat.ErrTokenLimitReached,
	}
	server := newChatServer(t, chatter)

	resp := postChat(t, server, `{"messages":[{"role":"user","content":"domanda"}],"stream":true}`)

	var lines []ChatResponse
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line ChatResponse
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		lines = append(lines, line)
	}

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want delta then error", len(lines))
	}
	if lines[0].Error != "" || lines[0].Choices[0].Delta.Content != "Inizio" {
		t.Errorf("first line = %+v, want the delta", lines[0])
	}
	if lines[1].Error == "" || len(lines[1].Choices) != 0 {
		t.Errorf("last line = %+v, want only the error", lines[1])
	}
}

func TestChatModerationReturnsErrorField(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{err: chat.ErrContentModerated})

	resp := postChat(t, server, `{"messages":[{"role":"user","content":"domanda"}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a policy rejection", resp.StatusCode)
	}

	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Error == "" {
		t.Error("error field must be set for a policy rejection")
	}
	if len(body.Choices) != 0 {
		t.Errorf("choices = %+v, want none after a rejection", body.Choices)
	}
}

func TestChatInvalidConversation(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp := postChat(t, server, `{"messages":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an empty conversation", resp.StatusCode)
	}
}

func TestChatMalformedBody(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp := postChat(t, server, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed JSON", resp.StatusCode)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	server := newChatServer(t, &scriptedChatter{})

	resp, err := http.Get(server.URL + "/chat")
	if err != nil {
		t.Fatalf("GET /chat error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
