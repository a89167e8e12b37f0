// Package chat implements the retrieval-augmented, function-calling
// conversation orchestrator for the Hello Sure assistant.
//
// One orchestration run is a small protocol state machine driven by a
// non-deterministic remote model:
//
//	AwaitingCompletion → ToolRequested → AwaitingCompletion → … → Finished
//	                   → Rejected | TokenLimited            (terminal errors)
//
// Each run owns a growing message list (Options) derived from the immutable
// inbound Request; nothing survives across requests. Tool results are
// appended to that list and the loop re-enters AwaitingCompletion until the
// model stops — with the guarantee that at least one and at most one
// retrieval-augmentation call grounds the answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/easydom/hellosure/internal/log"
)

// systemMessage is the assistant persona. The citation instruction from
// augment.go is appended to it once sources are injected.
const systemMessage = `Sei un assistente di nome "Hello Sure" sviluppato dalla Easydom (sede italiana in Via Monte Santo, 14 - 20, 20851 Lissone MB. Telefono 0287168663).
Il tuo colore preferito è l'azzurro del logo.
Rispondi solo a domande relative al sistema di antifurto di nome "Hello Sure".
Se non conosci la risposta in base alla sorgente rimanda l'utente al sito https://www.hellosure.app.
Non inventare mai risposte o rispondere con frasi non presenti nelle sorgenti.
Rispondi sempre nella lingua in cui è stata fatta la domanda e cerca di essere breve nelle risposte.`

// state is a node of the orchestration state machine.
type state int

const (
	stateAwaitingCompletion state = iota
	stateToolRequested
	stateFinished
	stateRejected
	stateTokenLimited
)

// String returns the state name for logging.
func (s state) String() string {
	switch s {
	case stateAwaitingCompletion:
		return "awaiting-completion"
	case stateToolRequested:
		return "tool-requested"
	case stateFinished:
		return "finished"
	case stateRejected:
		return "rejected"
	case stateTokenLimited:
		return "token-limited"
	default:
		return "unknown"
	}
}

// transition is the pure transition function of the state machine: given
// how the last completion finished and whether any tool has run, it returns
// the next state. A normal stop before any tool call is treated as an
// implicit retrieval request — every answer must be grounded at least once.
func transition(finish FinishReason, toolCalled bool) state {
	switch finish {
	case FinishModerated:
		return stateRejected
	case FinishTokenLimit:
		return stateTokenLimited
	case FinishToolCall:
		return stateToolRequested
	case FinishStop:
		if toolCalled {
			return stateFinished
		}
		return stateToolRequested
	default:
		return stateAwaitingCompletion
	}
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Completer Completer
	Retriever Retriever
	Events    EventSource
	Logger    log.Logger
	Tools     []ai.ToolRef

	// Generation parameters.
	Temperature float32
	MaxTokens   int
	MaxTurns    int // tool-call loop cap (default 5)

	// Retrieval parameters.
	TopK       int // documents injected as sources (default 3)
	Candidates int // vector candidate pool before truncation (default 50)

	// Resilience (zero values use defaults).
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter

	// Now overrides the clock for the events date range. Test use only.
	Now func() time.Time
}

func (cfg Config) validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Events == nil {
		return errors.New("event source is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator drives conversation runs. It is stateless across requests
// and safe for concurrent use: every run owns its working message list.
type Orchestrator struct {
	completer Completer
	retriever Retriever
	events    EventSource
	logger    log.Logger
	toolRefs  []ai.ToolRef

	temperature float32
	maxTokens   int
	maxTurns    int
	topK        int
	candidates  int

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter

	now func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	candidates := cfg.Candidates
	if candidates < topK {
		candidates = 50
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	o := &Orchestrator{
		completer:      cfg.Completer,
		retriever:      cfg.Retriever,
		events:         cfg.Events,
		logger:         cfg.Logger,
		toolRefs:       cfg.Tools,
		temperature:    cfg.Temperature,
		maxTokens:      maxTokens,
		maxTurns:       maxTurns,
		topK:           topK,
		candidates:     candidates,
		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    limiter,
		now:            now,
	}

	o.logger.Info("orchestrator initialized",
		"maxTurns", o.maxTurns,
		"topK", o.topK,
		"candidates", o.candidates)

	return o, nil
}

// run is the per-request working state: the immutable inbound request and
// the growing conversation buffer exclusively owned by this run.
type run struct {
	req  *Request
	opts *Options
}

func (o *Orchestrator) newRun(req *Request) *run {
	msgs := make([]*ai.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(systemMessage)))
	for _, m := range req.Messages {
		msgs = append(msgs, m.toAI())
	}
	return &run{
		req: req,
		opts: &Options{
			Messages:    msgs,
			Temperature: o.temperature,
			MaxTokens:   o.maxTokens,
			Tools:       o.toolRefs,
		},
	}
}

// Chat executes one orchestration run and returns its answer as a lazy
// event stream. The tool-call loop runs to completion first; the final,
// fully grounded completion is then streamed as AnswerEvents. A terminal
// failure yields exactly one error and no further events.
func (o *Orchestrator) Chat(ctx context.Context, req *Request) Stream {
	return func(yield func(AnswerEvent, error) bool) {
		if err := req.Validate(); err != nil {
			yield(AnswerEvent{}, err)
			return
		}

		runID := uuid.New()
		logger := o.logger.With("run_id", runID)

		r := o.newRun(req)
		if err := o.loop(ctx, r, logger); err != nil {
			yield(AnswerEvent{}, err)
			return
		}

		o.streamFinal(ctx, r, logger, yield)
	}
}

// loop drives the state machine until the conversation is fully grounded
// and the model would stop. On return the run's options hold the complete,
// tool-augmented conversation ready for the final completion.
func (o *Orchestrator) loop(ctx context.Context, r *run, logger log.Logger) error {
	toolCalled := false

	for turn := 0; turn < o.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := o.complete(ctx, r.opts)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoResponse, err)
		}

		next := transition(res.Finish, toolCalled)
		logger.Debug("state transition",
			"finish", res.Finish.String(),
			"state", next.String(),
			"turn", turn)

		switch next {
		case stateRejected:
			return ErrContentModerated
		case stateTokenLimited:
			return ErrTokenLimitReached
		case stateFinished:
			return nil
		case stateToolRequested:
			calls := res.ToolCalls
			if len(calls) == 0 {
				// Stop before any tool ran: force one retrieval call so
				// the answer is grounded in sources.
				calls = []ToolCall{{Name: QueryToolName}}
			}
			for _, call := range calls {
				if err := o.dispatch(ctx, r, call); err != nil {
					return err
				}
			}
			toolCalled = true
		default:
			// Unclassified finish with no content: nothing usable came back.
			return ErrNoResponse
		}
	}

	return fmt.Errorf("%w: tool loop did not settle within %d turns", ErrNoResponse, o.maxTurns)
}

// streamFinal performs the final completion over the tool-augmented
// conversation and exposes it through the stream aggregator. A
// non-streaming completer still surfaces its answer through the same lazy
// contract as a single event.
func (o *Orchestrator) streamFinal(ctx context.Context, r *run, logger log.Logger, yield func(AnswerEvent, error) bool) {
	if err := o.acquire(ctx); err != nil {
		yield(AnswerEvent{}, fmt.Errorf("%w: %v", ErrNoResponse, err))
		return
	}

	res, err, emitted, stopped := pumpStream(ctx, yield, func(ctx context.Context, cb StreamCallback) (*Result, error) {
		return o.completer.CompleteStream(ctx, r.opts, cb)
	})
	if stopped {
		return
	}

	if err != nil || res == nil {
		o.circuitBreaker.Failure()
		if err != nil {
			yield(AnswerEvent{}, fmt.Errorf("%w: %v", ErrNoResponse, err))
		} else {
			yield(AnswerEvent{}, ErrNoResponse)
		}
		return
	}

	switch res.Finish {
	case FinishModerated:
		o.circuitBreaker.Success()
		yield(AnswerEvent{}, ErrContentModerated)
		return
	case FinishTokenLimit:
		o.circuitBreaker.Success()
		yield(AnswerEvent{}, ErrTokenLimitReached)
		return
	}

	o.circuitBreaker.Success()

	// Uniform lazy-sequence contract: a completer that answered without
	// streaming still yields its text as one event.
	if emitted == 0 && res.Text != "" {
		yield(AnswerEvent{ChoiceIndex: 0, Role: RoleAssistant, ContentDelta: res.Text}, nil)
	}

	logger.Info("run finished", "streamed_events", emitted)
}

// acquire applies the rate limiter and circuit breaker ahead of a remote
// completion call.
func (o *Orchestrator) acquire(ctx context.Context) error {
	if err := o.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if err := o.circuitBreaker.Allow(); err != nil {
		o.logger.Warn("circuit breaker is open, rejecting request",
			"state", o.circuitBreaker.State().String())
		return err
	}
	return nil
}
