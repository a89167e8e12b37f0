package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"single user message", Request{Messages: []Message{{Role: RoleUser, Content: "ciao"}}}, false},
		{"conversation ending with user", Request{Messages: []Message{
			{Role: RoleSystem, Content: "istruzioni"},
			{Role: RoleUser, Content: "ciao"},
			{Role: RoleAssistant, Content: "ciao!"},
			{Role: RoleUser, Content: "come stai?"},
		}}, false},
		{"empty conversation", Request{}, true},
		{"ends with assistant", Request{Messages: []Message{
			{Role: RoleUser, Content: "ciao"},
			{Role: RoleAssistant, Content: "ciao!"},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRequestLastUserText(t *testing.T) {
	req := Request{Messages: []Message{
		{Role: RoleUser, Content: "prima"},
		{Role: RoleAssistant, Content: "risposta"},
		{Role: RoleUser, Content: "seconda"},
	}}
	if got := req.LastUserText(); got != "seconda" {
		t.Errorf("LastUserText() = %q, want %q", got, "seconda")
	}

	empty := Request{Messages: []Message{{Role: RoleAssistant, Content: "solo io"}}}
	if got := empty.LastUserText(); got != "" {
		t.Errorf("LastUserText() = %q, want empty", got)
	}
}

func TestMessageToAIRoles(t *testing.T) {
	tests := []struct {
		wire string
		want ai.Role
	}{
		{RoleSystem, ai.RoleSystem},
		{RoleUser, ai.RoleUser},
		{RoleAssistant, ai.RoleModel},
		{RoleTool, ai.RoleTool},
		{"qualcosa", ai.RoleUser}, // unknown roles default to user
	}
	for _, tt := range tests {
		m := Message{Role: tt.wire, Content: "x"}.toAI()
		if m.Role != tt.want {
			t.Errorf("toAI() role for %q = %v, want %v", tt.wire, m.Role, tt.want)
		}
	}
}

func TestSystemTextAndAppend(t *testing.T) {
	msgs := []*ai.Message{
		ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart("base")),
		ai.NewMessage(ai.RoleUser, nil, ai.NewTextPart("domanda")),
	}

	appendSystemText(msgs, " più istruzioni")
	if got := systemText(msgs); got != "base più istruzioni" {
		t.Errorf("systemText() = %q", got)
	}
	if !strings.HasSuffix(systemText(msgs), " più istruzioni") {
		t.Error("suffix check failed after append")
	}

	// No leading system message means nothing to read or append to.
	userOnly := []*ai.Message{ai.NewMessage(ai.RoleUser, nil, ai.NewTextPart("ciao"))}
	if got := systemText(userOnly); got != "" {
		t.Errorf("systemText() without system message = %q, want empty", got)
	}
	appendSystemText(userOnly, "ignorato")
	if len(userOnly[0].Content) != 1 {
		t.Error("appendSystemText must not touch non-system messages")
	}
}
