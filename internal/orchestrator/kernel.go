package orchestrator

import (
	"context"
	"log/slog"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/logger"
	"github.com/lecternhq/lectern/internal/model/contract"
	"github.com/lecternhq/lectern/internal/orchestrator/session"
	"github.com/lecternhq/lectern/internal/store"
	"github.com/lecternhq/lectern/internal/tool"
)

// Kernel is the entry point for answering a query: it owns session history,
// runs the loop with a fresh citation tracker, and persists the exchange.
type Kernel struct {
	loop         *Loop
	sessions     *session.Manager
	historyLimit int
}

// Answer is what every ingress surface (HTTP, CLI, chat adapters) receives.
type Answer struct {
	SessionID string
	Text      string
	Sources   []tool.Source
	Rounds    int
	ToolCalls int
}

func NewKernel(loop *Loop, sessions *session.Manager, historyLimit int) *Kernel {
	if historyLimit <= 0 {
		historyLimit = config.DefaultSessionHistoryLimit
	}
	return &Kernel{
		loop:         loop,
		sessions:     sessions,
		historyLimit: historyLimit,
	}
}

// Answer runs one query end to end. Each call gets its own tracker, so
// concurrent queries never mix citations.
func (k *Kernel) Answer(ctx context.Context, sessionID, query string) (*Answer, error) {
	sess, err := k.sessions.GetOrCreate(sessionID, query)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithSessionID(ctx, sess.ID)

	history, err := k.loadHistory(sess.ID)
	if err != nil {
		return nil, err
	}

	tracker := tool.NewTracker()
	result, err := k.loop.Run(ctx, history, query, tracker)
	if err != nil {
		return nil, err
	}
	sources := tracker.Drain()

	k.persistExchange(sess, query, result)

	slog.Info("query answered",
		"session_id", sess.ID,
		"trace_id", logger.GetTraceID(ctx),
		"rounds", result.Rounds,
		"tool_calls", result.ToolCalls,
		"sources", len(sources),
	)

	return &Answer{
		SessionID: sess.ID,
		Text:      result.Answer,
		Sources:   sources,
		Rounds:    result.Rounds,
		ToolCalls: result.ToolCalls,
	}, nil
}

// DeleteSession removes a session and its transcript.
func (k *Kernel) DeleteSession(sessionID string) error {
	return k.sessions.Delete(sessionID)
}

// loadHistory replays prior user/assistant turns as engine messages. Tool
// turns are not replayed; each query re-derives its own evidence.
func (k *Kernel) loadHistory(sessionID string) ([]contract.Message, error) {
	entries, err := k.sessions.History(sessionID, k.historyLimit*2)
	if err != nil {
		return nil, err
	}

	var history []contract.Message
	for _, entry := range entries {
		switch entry.Role {
		case store.RoleUser, store.RoleAssistant:
			history = append(history, contract.Message{
				Role:    string(entry.Role),
				Content: entry.Content,
			})
		}
	}
	return history, nil
}

// persistExchange is best effort: a transcript write failure must not turn a
// produced answer into a query error.
func (k *Kernel) persistExchange(sess *store.SessionMeta, query string, result *Result) {
	if err := k.sessions.AppendEntry(sess.ID, store.TranscriptEntry{
		Role:    store.RoleUser,
		Content: query,
	}); err != nil {
		slog.Error("failed to persist user turn", "session_id", sess.ID, "error", err)
	}

	if err := k.sessions.AppendEntry(sess.ID, store.TranscriptEntry{
		Role:    store.RoleAssistant,
		Content: result.Answer,
		Metadata: map[string]any{
			"rounds":     result.Rounds,
			"tool_calls": result.ToolCalls,
		},
	}); err != nil {
		slog.Error("failed to persist assistant turn", "session_id", sess.ID, "error", err)
	}

	if err := k.sessions.Touch(sess); err != nil {
		slog.Error("failed to touch session", "session_id", sess.ID, "error", err)
	}
}
