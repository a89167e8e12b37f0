package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/easydom/hellosure/internal/chat"
	"github.com/easydom/hellosure/internal/log"
)

// maxRequestBytes caps the inbound conversation payload.
const maxRequestBytes = 1 << 20 // 1 MB

// Chatter runs one conversation. *chat.Orchestrator satisfies it.
type Chatter interface {
	Chat(ctx context.Context, req *chat.Request) chat.Stream
}

// ChoiceMessage is one answer (or answer fragment) on the wire.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one answer candidate. Aggregated responses populate Message;
// streamed responses populate Delta.
type Choice struct {
	Index   int            `json:"index"`
	Message *ChoiceMessage `json:"message,omitempty"`
	Delta   *ChoiceMessage `json:"delta,omitempty"`
}

// ChatResponse is the response body of POST /chat. In streaming mode one
// ChatResponse per line is written as newline-delimited JSON.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Error   string   `json:"error,omitempty"`
}

// ChatHandler serves the conversation endpoint.
type ChatHandler struct {
	orch   Chatter
	logger log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(orch Chatter, logger log.Logger) *ChatHandler {
	return &ChatHandler{orch: orch, logger: logger}
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.chat)
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON conversation")
		return
	}

	if req.Stream {
		h.streamChat(w, r, &req)
		return
	}
	h.completeChat(w, r, &req)
}

// completeChat drains the whole answer stream and responds with one JSON
// body, concatenating deltas per choice.
func (h *ChatHandler) completeChat(w http.ResponseWriter, r *http.Request, req *chat.Request) {
	contents := make(map[int]*strings.Builder)

	for ev, err := range h.orch.Chat(r.Context(), req) {
		if err != nil {
			h.writeChatError(w, r, err)
			return
		}
		b, ok := contents[ev.ChoiceIndex]
		if !ok {
			b = &strings.Builder{}
			contents[ev.ChoiceIndex] = b
		}
		b.WriteString(ev.ContentDelta)
	}

	indexes := make([]int, 0, len(contents))
	for i := range contents {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	resp := ChatResponse{Choices: make([]Choice, 0, len(indexes))}
	for _, i := range indexes {
		resp.Choices = append(resp.Choices, Choice{
			Index:   i,
			Message: &ChoiceMessage{Role: chat.RoleAssistant, Content: contents[i].String()},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// streamChat writes one JSON line per answer event (newline-delimited
// JSON), flushing after each line so clients render the answer as it is
// generated. A terminal failure becomes a final line with the error field
// set; nothing follows it.
func (h *ChatHandler) streamChat(w http.ResponseWriter, r *http.Request, req *chat.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	writeLine := func(resp ChatResponse) bool {
		if err := encoder.Encode(resp); err != nil {
			h.logger.Debug("client went away mid-stream",
				"request_id", requestID(r.Context()), "error", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for ev, err := range h.orch.Chat(r.Context(), req) {
		if err != nil {
			writeLine(ChatResponse{Error: chatErrorMessage(err)})
			return
		}
		ok := writeLine(ChatResponse{Choices: []Choice{{
			Index: ev.ChoiceIndex,
			Delta: &ChoiceMessage{Role: ev.Role, Content: ev.ContentDelta},
		}}})
		if !ok {
			return
		}
	}
}

// writeChatError maps a terminal run error onto an HTTP response. Policy
// and budget conditions are part of the conversation contract and come back
// as a 200 with the error field set; invalid conversations are the caller's
// fault; everything else is an upstream failure.
func (h *ChatHandler) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, chat.ErrContentModerated), errors.Is(err, chat.ErrTokenLimitReached):
		writeJSON(w, http.StatusOK, ChatResponse{Error: chatErrorMessage(err)})
	default:
		h.logger.Error("conversation run failed",
			"request_id", requestID(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, ChatResponse{Error: chatErrorMessage(err)})
	}
}

// chatErrorMessage renders a terminal error for the wire.
func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrContentModerated):
		return "la richiesta è stata rifiutata dalle politiche sui contenuti"
	case errors.Is(err, chat.ErrTokenLimitReached):
		return "la risposta ha superato il limite di lunghezza"
	default:
		return err.Error()
	}
}
