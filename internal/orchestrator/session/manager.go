package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lecternhq/lectern/internal/store"

	"github.com/oklog/ulid/v2"
)

// Store is the slice of the store worker the manager consumes.
type Store interface {
	GetSession(id string) (*store.SessionMeta, error)
	SaveSession(session *store.SessionMeta) error
	DeleteSession(id string) error
	ListSessions() ([]string, error)
	WriteTranscript(sessionID string, data []byte) error
	ReadTranscript(sessionID string, limit int) ([]string, error)
}

// Manager owns session lifecycle: creation, transcript access, teardown.
type Manager struct {
	store Store
}

func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

// GetOrCreate returns the session with the given ID, creating it when the ID
// is empty or unknown. The first user query becomes the session title.
func (m *Manager) GetOrCreate(sessionID, firstQuery string) (*store.SessionMeta, error) {
	if sessionID != "" {
		sess, err := m.store.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}

	now := time.Now().UTC()
	sess := &store.SessionMeta{
		ID:        sessionID,
		Title:     truncateTitle(firstQuery),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sess.ID == "" {
		sess.ID = ulid.Make().String()
	}

	if err := m.store.SaveSession(sess); err != nil {
		return nil, err
	}
	slog.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// Touch bumps the session's UpdatedAt.
func (m *Manager) Touch(sess *store.SessionMeta) error {
	sess.UpdatedAt = time.Now().UTC()
	return m.store.SaveSession(sess)
}

// Delete removes the session and its transcript.
func (m *Manager) Delete(sessionID string) error {
	return m.store.DeleteSession(sessionID)
}

func (m *Manager) List() ([]string, error) {
	return m.store.ListSessions()
}

// AppendEntry writes one transcript entry as a JSON line, assigning it a ULID.
func (m *Manager) AppendEntry(sessionID string, entry store.TranscriptEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}
	return m.store.WriteTranscript(sessionID, data)
}

// History returns up to limit most recent transcript entries. Lines that fail
// to parse are skipped rather than poisoning the whole read.
func (m *Manager) History(sessionID string, limit int) ([]store.TranscriptEntry, error) {
	lines, err := m.store.ReadTranscript(sessionID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]store.TranscriptEntry, 0, len(lines))
	for _, line := range lines {
		var entry store.TranscriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			slog.Warn("skipping unparseable transcript line", "session_id", sessionID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func truncateTitle(query string) string {
	title := strings.TrimSpace(query)
	if len(title) > 80 {
		title = title[:77] + "..."
	}
	return title
}
