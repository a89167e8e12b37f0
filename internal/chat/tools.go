package chat

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Tool names exposed to the completion service.
const (
	// QueryToolName fetches grounding sources for the answer.
	QueryToolName = "query"

	// EventsToolName lists security-system events in a date range.
	EventsToolName = "events"
)

// eventsArgs are the model-supplied arguments of the events tool. Both
// fields are optional and independently defaulted.
type eventsArgs struct {
	// Days is the number of days before today (yesterday=1).
	Days string `json:"days,omitempty"`
	// Date is an exact ISO-8601 date (2006-01-02).
	Date string `json:"date,omitempty"`
}

// DefineTools registers the two tool declarations with Genkit and returns
// their refs for ai.WithTools. The handlers bodies are never invoked in a
// normal run: the orchestrator requests tool calls back
// (ai.WithReturnToolRequests) and dispatches them itself, so the state
// machine keeps control of loop prevention and termination.
func DefineTools(g *genkit.Genkit) []ai.ToolRef {
	queryTool := genkit.DefineTool(
		g,
		QueryToolName,
		"Prepara una query di ricerca per ottenere le fonti necessarie a rispondere. "+
			"Utilizza sempre questa funzione per ottenere le fonti",
		func(ctx *ai.ToolContext, input struct{}) (string, error) {
			return "", nil
		},
	)

	eventsTool := genkit.DefineTool(
		g,
		EventsToolName,
		"Restituisce la lista degli eventi (armato, disarmato, attivazione, disattivazione) "+
			"su dispositivi (porte, sensori, finestre, sirena, presenze) dell'antifurto "+
			"che si sono verificati nel periodo indicato.",
		func(ctx *ai.ToolContext, input eventsArgs) (string, error) {
			return "", nil
		},
	)

	return []ai.ToolRef{queryTool, eventsTool}
}

// dispatch routes a model-requested tool call to its handler and appends the
// handler's output to the run's conversation. Unknown tool names route to
// the retrieval handler: when unsure, get sources.
func (o *Orchestrator) dispatch(ctx context.Context, run *run, call ToolCall) error {
	switch call.Name {
	case EventsToolName:
		return o.runEvents(ctx, run, call)
	default:
		return o.augment(ctx, run, call)
	}
}

// appendToolMessage appends a tool-role message carrying output for the
// named tool to the run's conversation.
func appendToolMessage(opts *Options, name, ref string, output any) {
	opts.Messages = append(opts.Messages, ai.NewMessage(ai.RoleTool, nil,
		ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   name,
			Ref:    ref,
			Output: output,
		})))
}
