package chat

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

// Wire roles accepted on inbound conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of an inbound conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a complete, self-contained conversation request. It is
// immutable for the duration of one orchestration run; the run works on a
// derived message list (Options).
type Request struct {
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Validate checks the inbound conversation invariants: at least one message,
// and the last message authored by the user.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}
	if last := r.Messages[len(r.Messages)-1]; last.Role != RoleUser {
		return fmt.Errorf("%w: last message must have role %q, got %q", ErrInvalidRequest, RoleUser, last.Role)
	}
	return nil
}

// LastUserText returns the content of the most recent user message, used as
// the query-rewriter fallback.
func (r *Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// toAI converts a wire message to a Genkit message.
func (m Message) toAI() *ai.Message {
	var role ai.Role
	switch m.Role {
	case RoleSystem:
		role = ai.RoleSystem
	case RoleAssistant:
		role = ai.RoleModel
	case RoleTool:
		role = ai.RoleTool
	default:
		role = ai.RoleUser
	}
	return ai.NewMessage(role, nil, ai.NewTextPart(m.Content))
}

// systemText returns the text of the leading system message, or "".
func systemText(msgs []*ai.Message) string {
	if len(msgs) == 0 || msgs[0].Role != ai.RoleSystem {
		return ""
	}
	var b strings.Builder
	for _, p := range msgs[0].Content {
		b.WriteString(p.Text)
	}
	return b.String()
}

// appendSystemText appends text to the leading system message in place.
func appendSystemText(msgs []*ai.Message, text string) {
	if len(msgs) == 0 || msgs[0].Role != ai.RoleSystem {
		return
	}
	msgs[0].Content = append(msgs[0].Content, ai.NewTextPart(text))
}
