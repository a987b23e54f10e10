package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/model/contract"
)

// Kind tags what a tool execution produced. Every kind except KindOK renders
// an operator-readable explanation in Text; none of them abort the query.
type Kind string

const (
	KindOK                Kind = "ok"
	KindResolutionFailed  Kind = "resolution_failed"
	KindEmpty             Kind = "empty"
	KindBackendError      Kind = "backend_error"
	KindMalformedMetadata Kind = "malformed_metadata"
	KindInternalError     Kind = "internal_error"
)

// Outcome is the result of one tool execution. Text always holds something
// the reasoning engine can read, success or not. Sources carries citations
// for the caller's tracker.
type Outcome struct {
	Kind    Kind
	Text    string
	Sources []Source
}

// Tool represents one capability exposed to the reasoning engine. Execute
// absorbs all internal failures into the returned Outcome.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) Outcome
}

// Registry holds the available tools in registration order.
type Registry struct {
	names []string
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Empty and duplicate names are wiring bugs and fail
// loudly at startup.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return errors.Configuration("tool name is empty")
	}
	if _, exists := r.tools[name]; exists {
		return errors.Configuration(fmt.Sprintf("tool %q already registered", name))
	}

	r.names = append(r.names, name)
	r.tools[name] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[strings.TrimSpace(name)]
	return t, ok
}

// Definitions returns the engine-facing tool schemas in registration order.
func (r *Registry) Definitions() []contract.ToolDef {
	defs := make([]contract.ToolDef, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		defs = append(defs, contract.ToolDef{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Dispatch routes one engine-requested call to the named tool. An unknown
// name returns errors.ErrToolNotFound and is fatal to the query: it signals a
// schema/registration mismatch, not a bad argument. Everything else, including
// malformed input, comes back as an Outcome for the engine to read.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) (Outcome, error) {
	t, ok := r.Get(name)
	if !ok {
		return Outcome{}, errors.Wrap(errors.ErrToolNotFound, fmt.Sprintf("dispatch %q", name))
	}

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := ValidateInput(t.Parameters(), input); err != nil {
		return Outcome{
			Kind: KindInternalError,
			Text: fmt.Sprintf("Tool error: %v", err),
		}, nil
	}

	return t.Execute(ctx, input), nil
}
