package orchestrator

import (
	"context"
	"testing"

	"github.com/lecternhq/lectern/internal/model/contract"
	"github.com/lecternhq/lectern/internal/orchestrator/session"
	"github.com/lecternhq/lectern/internal/store"
	"github.com/lecternhq/lectern/internal/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memSessionStore struct {
	sessions    map[string]store.SessionMeta
	transcripts map[string][]string
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions:    make(map[string]store.SessionMeta),
		transcripts: make(map[string][]string),
	}
}

func (m *memSessionStore) GetSession(id string) (*store.SessionMeta, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memSessionStore) SaveSession(s *store.SessionMeta) error {
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessionStore) DeleteSession(id string) error {
	delete(m.sessions, id)
	delete(m.transcripts, id)
	return nil
}

func (m *memSessionStore) ListSessions() ([]string, error) { return nil, nil }

func (m *memSessionStore) WriteTranscript(sessionID string, data []byte) error {
	m.transcripts[sessionID] = append(m.transcripts[sessionID], string(data))
	return nil
}

func (m *memSessionStore) ReadTranscript(sessionID string, limit int) ([]string, error) {
	lines := m.transcripts[sessionID]
	if limit > 0 && len(lines) > limit {
		return lines[len(lines)-limit:], nil
	}
	return lines, nil
}

func newTestKernel(t *testing.T, engine *MockEngine, ms *memSessionStore) *Kernel {
	t.Helper()
	registry := newTestRegistry(t, &recordingTool{
		name: "search_course_content",
		outcome: tool.Outcome{
			Kind:    tool.KindOK,
			Text:    "[Course - Lesson 1]\nfound it",
			Sources: []tool.Source{{CourseTitle: "Course"}},
		},
	})
	loop := NewLoop(engine, registry, LoopConfig{Model: "m"})
	return NewKernel(loop, session.NewManager(ms), 10)
}

func TestKernel_AnswerCreatesSessionAndPersistsExchange(t *testing.T) {
	engine := new(MockEngine)
	ms := newMemSessionStore()
	kernel := newTestKernel(t, engine, ms)

	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{Content: "the answer"}, nil).
		Once()

	answer, err := kernel.Answer(context.Background(), "", "what is X?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.SessionID)
	assert.Equal(t, "the answer", answer.Text)
	assert.Empty(t, answer.Sources)

	// user turn + assistant turn
	assert.Len(t, ms.transcripts[answer.SessionID], 2)
}

func TestKernel_AnswerCollectsSourcesFromTools(t *testing.T) {
	engine := new(MockEngine)
	kernel := newTestKernel(t, engine, newMemSessionStore())

	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{
			ToolCalls: []*contract.ToolCall{{ID: "c1", Name: "search_course_content", Input: `{}`}},
		}, nil).
		Once()
	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{Content: "grounded"}, nil).
		Once()

	answer, err := kernel.Answer(context.Background(), "", "question")
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "Course", answer.Sources[0].CourseTitle)
	assert.Equal(t, 1, answer.Sources[0].CitationNumber)
	assert.Equal(t, 1, answer.Rounds)
}

func TestKernel_ConcurrentQueriesKeepSourcesSeparate(t *testing.T) {
	engine := new(MockEngine)
	kernel := newTestKernel(t, engine, newMemSessionStore())

	// Stubs are declared in the order testify consumes them: each query
	// gets one tool-call response followed by one grounded answer.
	for i := 0; i < 2; i++ {
		engine.
			On("Route", mock.Anything, "m", mock.Anything).
			Return(&contract.CompletionResponse{
				ToolCalls: []*contract.ToolCall{{ID: "c", Name: "search_course_content", Input: `{}`}},
			}, nil).
			Once()
		engine.
			On("Route", mock.Anything, "m", mock.Anything).
			Return(&contract.CompletionResponse{Content: "grounded"}, nil).
			Once()
	}

	a1, err := kernel.Answer(context.Background(), "", "first")
	require.NoError(t, err)
	a2, err := kernel.Answer(context.Background(), "", "second")
	require.NoError(t, err)

	assert.Len(t, a1.Sources, 1)
	assert.Len(t, a2.Sources, 1)
	assert.Equal(t, 1, a2.Sources[0].CitationNumber, "numbering restarts per query")
}

func TestKernel_FollowupSeesPriorTurns(t *testing.T) {
	engine := new(MockEngine)
	kernel := newTestKernel(t, engine, newMemSessionStore())

	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{Content: "first answer"}, nil).
		Once()
	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{Content: "second answer"}, nil).
		Once()

	first, err := kernel.Answer(context.Background(), "", "first question")
	require.NoError(t, err)

	_, err = kernel.Answer(context.Background(), first.SessionID, "followup")
	require.NoError(t, err)

	require.Len(t, engine.requests, 2)
	msgs := engine.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "first question", msgs[0].Content)
	assert.Equal(t, "first answer", msgs[1].Content)
	assert.Equal(t, "followup", msgs[2].Content)
}

func TestKernel_DeleteSessionRemovesHistory(t *testing.T) {
	engine := new(MockEngine)
	ms := newMemSessionStore()
	kernel := newTestKernel(t, engine, ms)

	engine.
		On("Route", mock.Anything, "m", mock.Anything).
		Return(&contract.CompletionResponse{Content: "a"}, nil).
		Once()

	answer, err := kernel.Answer(context.Background(), "", "q")
	require.NoError(t, err)

	require.NoError(t, kernel.DeleteSession(answer.SessionID))
	assert.Empty(t, ms.transcripts[answer.SessionID])
}
