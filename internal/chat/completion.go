package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/easydom/hellosure/internal/log"
)

// FinishReason classifies how the remote model ended a completion.
type FinishReason int

const (
	// FinishUnknown is an unclassified outcome.
	FinishUnknown FinishReason = iota
	// FinishStop is a normal completion.
	FinishStop
	// FinishToolCall means the model requested one or more tools.
	FinishToolCall
	// FinishTokenLimit means the output was truncated by the token budget.
	FinishTokenLimit
	// FinishModerated means the input was rejected by the content policy.
	FinishModerated
)

// String returns the finish reason name for logging.
func (f FinishReason) String() string {
	switch f {
	case FinishStop:
		return "stop"
	case FinishToolCall:
		return "tool-call"
	case FinishTokenLimit:
		return "token-limit"
	case FinishModerated:
		return "moderated"
	default:
		return "unknown"
	}
}

// ToolCall is a model-requested tool invocation. RawArguments carries the
// argument text as emitted by the model; parsing is the dispatcher's job.
type ToolCall struct {
	Name         string
	RawArguments string
	Ref          string
}

// Options is the mutable working state of one orchestration run: the growing
// message list plus generation parameters. It is owned exclusively by its
// run and never shared across requests.
type Options struct {
	Messages    []*ai.Message
	Temperature float32
	MaxTokens   int
	Tools       []ai.ToolRef
}

// Result is the outcome of one completion call.
type Result struct {
	Text      string
	Finish    FinishReason
	ToolCalls []ToolCall
}

// Chunk is one streamed fragment of a completion.
type Chunk struct {
	Index int
	Text  string
}

// StreamCallback receives streamed completion fragments. Returning an error
// aborts the stream.
type StreamCallback func(ctx context.Context, chunk Chunk) error

// Completer abstracts the remote chat-completion service. Implementations
// must be safe for concurrent use by independent runs.
type Completer interface {
	// Complete submits the messages and returns a single completion.
	Complete(ctx context.Context, opts *Options) (*Result, error)

	// CompleteStream behaves like Complete but delivers partial output
	// through cb before returning the final result.
	CompleteStream(ctx context.Context, opts *Options, cb StreamCallback) (*Result, error)
}

// GenkitCompleter implements Completer on a Genkit model.
type GenkitCompleter struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
}

// NewGenkitCompleter creates a Completer backed by the named Genkit model
// (e.g. "googleai/gemini-2.5-flash").
func NewGenkitCompleter(g *genkit.Genkit, modelName string, logger log.Logger) *GenkitCompleter {
	return &GenkitCompleter{g: g, modelName: modelName, logger: logger}
}

// Complete implements Completer.
func (c *GenkitCompleter) Complete(ctx context.Context, opts *Options) (*Result, error) {
	return c.generate(ctx, opts, nil)
}

// CompleteStream implements Completer.
func (c *GenkitCompleter) CompleteStream(ctx context.Context, opts *Options, cb StreamCallback) (*Result, error) {
	return c.generate(ctx, opts, cb)
}

func (c *GenkitCompleter) generate(ctx context.Context, opts *Options, cb StreamCallback) (*Result, error) {
	temperature := opts.Temperature
	genOpts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(opts.Messages...),
		// Tool requests are surfaced to the orchestrator, never executed
		// by the model layer.
		ai.WithReturnToolRequests(true),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: int32(opts.MaxTokens),
			CandidateCount:  1,
		}),
	}
	if len(opts.Tools) > 0 {
		genOpts = append(genOpts, ai.WithTools(opts.Tools...))
	}
	if cb != nil {
		genOpts = append(genOpts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := cb(ctx, Chunk{Index: chunk.Index, Text: part.Text}); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, c.g, genOpts...)
	if err != nil {
		if moderatedError(err) {
			return &Result{Finish: FinishModerated}, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoResponse
	}

	res := &Result{Text: resp.Text()}
	switch {
	case resp.FinishReason == ai.FinishReasonBlocked:
		res.Finish = FinishModerated
	case resp.FinishReason == ai.FinishReasonLength:
		res.Finish = FinishTokenLimit
	case len(resp.ToolRequests()) > 0:
		res.Finish = FinishToolCall
		for _, tr := range resp.ToolRequests() {
			res.ToolCalls = append(res.ToolCalls, ToolCall{
				Name:         tr.Name,
				RawArguments: rawArguments(tr.Input),
				Ref:          tr.Ref,
			})
		}
	case resp.FinishReason == ai.FinishReasonStop:
		res.Finish = FinishStop
	default:
		res.Finish = FinishUnknown
	}

	c.logger.Debug("completion finished",
		"finish", res.Finish.String(),
		"tool_calls", len(res.ToolCalls),
		"text_length", len(res.Text))

	return res, nil
}

// moderatedPatterns match provider errors raised when the input itself is
// classified as disallowed.
//
// NOTE: string matching is used because the provider SDKs do not expose
// typed errors for policy rejections. Same exception as retryablePatterns.
var moderatedPatterns = []string{"content_filter", "blocked", "safety"}

func moderatedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range moderatedPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// rawArguments renders a tool request input back to argument text. Genkit
// delivers already-decoded arguments; the dispatcher expects raw text so it
// can parse defensively.
func rawArguments(input any) string {
	switch v := input.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
