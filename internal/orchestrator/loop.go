package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/logger"
	"github.com/lecternhq/lectern/internal/model/contract"
	"github.com/lecternhq/lectern/internal/tool"
)

// State names the loop's position between engine calls.
type State int

const (
	StateAwaitingEngine State = iota
	StateDispatching
	StateFinal
)

// ChatEngine is the slice of the model router the loop consumes.
type ChatEngine interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

// Loop drives one query through alternating engine calls and tool dispatches.
// A round is one engine call that was offered tool schemas. When the round
// budget runs out the loop makes one last engine call with no schemas, so an
// exhausted budget still ends in prose rather than an unanswered tool call.
type Loop struct {
	engine    ChatEngine
	registry  *tool.Registry
	model     string
	system    string
	maxRounds int
	maxTokens int
}

type LoopConfig struct {
	Model     string
	System    string
	MaxRounds int
	MaxTokens int
}

func NewLoop(engine ChatEngine, registry *tool.Registry, cfg LoopConfig) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = config.DefaultOrchestratorMaxRounds
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = config.DefaultModelMaxTokens
	}
	return &Loop{
		engine:    engine,
		registry:  registry,
		model:     cfg.Model,
		system:    cfg.System,
		maxRounds: cfg.MaxRounds,
		maxTokens: cfg.MaxTokens,
	}
}

// Result is the terminal outcome of one loop run.
type Result struct {
	Answer    string
	Rounds    int
	ToolCalls int
}

// Run executes the loop over an append-only transcript seeded with history
// and the user query. Tool failures become readable tool results; engine
// transport errors and unknown tool names abort the query.
func (l *Loop) Run(ctx context.Context, history []contract.Message, query string, tracker *tool.Tracker) (*Result, error) {
	transcript := make([]contract.Message, 0, len(history)+1)
	transcript = append(transcript, history...)
	transcript = append(transcript, contract.Message{Role: "user", Content: query})

	defs := l.registry.Definitions()
	result := &Result{}
	state := StateAwaitingEngine

	var resp *contract.CompletionResponse

	for state != StateFinal {
		switch state {
		case StateAwaitingEngine:
			req := contract.CompletionRequest{
				Model:     l.model,
				System:    l.system,
				Messages:  transcript,
				MaxTokens: l.maxTokens,
			}
			// Withhold schemas once the budget is spent: the engine must
			// answer in prose on the final call.
			if result.Rounds < l.maxRounds {
				req.Tools = defs
			}

			var err error
			resp, err = l.engine.Route(ctx, l.model, req)
			if err != nil {
				return nil, fmt.Errorf("engine call failed: %w", err)
			}

			if len(resp.ToolCalls) == 0 || result.Rounds >= l.maxRounds {
				state = StateFinal
				break
			}
			result.Rounds++
			state = StateDispatching

		case StateDispatching:
			assistant := contract.Message{Role: "assistant", Content: resp.Content}
			assistant.ToolCalls = append(assistant.ToolCalls, resp.ToolCalls...)
			transcript = append(transcript, assistant)

			// Results go back in the order the engine requested the calls,
			// each keyed by its call ID.
			for _, tc := range resp.ToolCalls {
				outcome, err := l.registry.Dispatch(ctx, tc.Name, []byte(tc.Input))
				if err != nil {
					return nil, err
				}
				result.ToolCalls++
				tracker.Add(outcome.Sources...)

				slog.Debug("tool dispatched",
					"session_id", logger.GetSessionID(ctx),
					"tool", tc.Name,
					"call_id", tc.ID,
					"kind", outcome.Kind,
				)

				transcript = append(transcript, contract.Message{
					Role:       "tool",
					Content:    outcome.Text,
					Name:       tc.Name,
					ToolCallID: tc.ID,
				})
			}
			state = StateAwaitingEngine
		}
	}

	result.Answer = resp.Content
	return result, nil
}
