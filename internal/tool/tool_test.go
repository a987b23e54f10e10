package tool

import (
	"context"
	"encoding/json"
	"testing"

	lecternErrors "github.com/lecternhq/lectern/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	params  map[string]interface{}
	outcome Outcome
	lastIn  json.RawMessage
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Parameters() map[string]interface{} {
	if s.params != nil {
		return s.params
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (s *stubTool) Execute(ctx context.Context, input json.RawMessage) Outcome {
	s.lastIn = input
	return s.outcome
}

func TestRegistry_RejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&stubTool{name: "  "})
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrConfiguration))
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{name: "search_course_content"}))

	err := r.Register(&stubTool{name: "search_course_content"})
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrConfiguration))
}

func TestRegistry_DefinitionsPreserveRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubTool{name: "zeta"}))
	require.NoError(t, r.Register(&stubTool{name: "alpha"}))
	require.NoError(t, r.Register(&stubTool{name: "mid"}))

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
}

func TestRegistry_DispatchUnknownToolIsFatal(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(context.Background(), "nope", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrToolNotFound))
}

func TestRegistry_DispatchAbsorbsInvalidInput(t *testing.T) {
	r := NewRegistry()
	st := &stubTool{
		name: "strict",
		params: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			},
			"required": []string{"query"},
		},
	}
	require.NoError(t, r.Register(st))

	outcome, err := r.Dispatch(context.Background(), "strict", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, KindInternalError, outcome.Kind)
	assert.Contains(t, outcome.Text, "missing required field: query")
	assert.Nil(t, st.lastIn, "tool must not run on invalid input")
}

func TestRegistry_DispatchPassesInputThrough(t *testing.T) {
	r := NewRegistry()
	st := &stubTool{name: "echo", outcome: Outcome{Kind: KindOK, Text: "done"}}
	require.NoError(t, r.Register(st))

	outcome, err := r.Dispatch(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, KindOK, outcome.Kind)
	assert.Equal(t, "done", outcome.Text)
	assert.JSONEq(t, `{"a":1}`, string(st.lastIn))
}

func TestRegistry_DispatchTreatsEmptyInputAsEmptyObject(t *testing.T) {
	r := NewRegistry()
	st := &stubTool{name: "noargs", outcome: Outcome{Kind: KindOK, Text: "ok"}}
	require.NoError(t, r.Register(st))

	outcome, err := r.Dispatch(context.Background(), "noargs", nil)
	require.NoError(t, err)
	assert.Equal(t, KindOK, outcome.Kind)
}
