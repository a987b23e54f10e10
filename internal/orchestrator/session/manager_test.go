package session

import (
	"encoding/json"
	"testing"

	"github.com/lecternhq/lectern/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	sessions    map[string]store.SessionMeta
	transcripts map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    make(map[string]store.SessionMeta),
		transcripts: make(map[string][]string),
	}
}

func (m *memStore) GetSession(id string) (*store.SessionMeta, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *memStore) SaveSession(s *store.SessionMeta) error {
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) DeleteSession(id string) error {
	delete(m.sessions, id)
	delete(m.transcripts, id)
	return nil
}

func (m *memStore) ListSessions() ([]string, error) {
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) WriteTranscript(sessionID string, data []byte) error {
	m.transcripts[sessionID] = append(m.transcripts[sessionID], string(data))
	return nil
}

func (m *memStore) ReadTranscript(sessionID string, limit int) ([]string, error) {
	lines := m.transcripts[sessionID]
	if limit > 0 && len(lines) > limit {
		return lines[len(lines)-limit:], nil
	}
	return lines, nil
}

func TestManager_GetOrCreate_NewSessionGetsULID(t *testing.T) {
	m := NewManager(newMemStore())

	sess, err := m.GetOrCreate("", "What does lesson 3 cover?")
	require.NoError(t, err)
	assert.Len(t, sess.ID, 26, "ULID is 26 chars")
	assert.Equal(t, "What does lesson 3 cover?", sess.Title)
	assert.Equal(t, "active", sess.Status)
}

func TestManager_GetOrCreate_ExistingSessionIsReturned(t *testing.T) {
	ms := newMemStore()
	m := NewManager(ms)

	first, err := m.GetOrCreate("", "first question")
	require.NoError(t, err)

	second, err := m.GetOrCreate(first.ID, "second question")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "first question", second.Title, "title keeps the first query")
}

func TestManager_GetOrCreate_UnknownIDIsRecreated(t *testing.T) {
	m := NewManager(newMemStore())

	sess, err := m.GetOrCreate("client-chosen-id", "q")
	require.NoError(t, err)
	assert.Equal(t, "client-chosen-id", sess.ID)
}

func TestManager_TitleIsTruncated(t *testing.T) {
	m := NewManager(newMemStore())

	long := ""
	for i := 0; i < 20; i++ {
		long += "0123456789"
	}
	sess, err := m.GetOrCreate("", long)
	require.NoError(t, err)
	assert.Len(t, sess.Title, 80)
	assert.True(t, len(sess.Title) <= 80)
}

func TestManager_AppendAndReadHistory(t *testing.T) {
	ms := newMemStore()
	m := NewManager(ms)

	require.NoError(t, m.AppendEntry("s1", store.TranscriptEntry{Role: store.RoleUser, Content: "hi"}))
	require.NoError(t, m.AppendEntry("s1", store.TranscriptEntry{Role: store.RoleAssistant, Content: "hello"}))

	entries, err := m.History("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.RoleUser, entries[0].Role)
	assert.Equal(t, "hi", entries[0].Content)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestManager_HistorySkipsCorruptLines(t *testing.T) {
	ms := newMemStore()
	m := NewManager(ms)

	require.NoError(t, m.AppendEntry("s1", store.TranscriptEntry{Role: store.RoleUser, Content: "ok"}))
	ms.transcripts["s1"] = append(ms.transcripts["s1"], "{not json")

	entries, err := m.History("s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].Content)
}

func TestManager_EntriesAreJSONLines(t *testing.T) {
	ms := newMemStore()
	m := NewManager(ms)

	require.NoError(t, m.AppendEntry("s1", store.TranscriptEntry{Role: store.RoleUser, Content: "hi"}))

	var entry store.TranscriptEntry
	require.NoError(t, json.Unmarshal([]byte(ms.transcripts["s1"][0]), &entry))
	assert.Equal(t, "hi", entry.Content)
}

func TestManager_Delete(t *testing.T) {
	ms := newMemStore()
	m := NewManager(ms)

	sess, err := m.GetOrCreate("", "q")
	require.NoError(t, err)
	require.NoError(t, m.AppendEntry(sess.ID, store.TranscriptEntry{Role: store.RoleUser, Content: "hi"}))

	require.NoError(t, m.Delete(sess.ID))

	got, err := m.GetOrCreate(sess.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, "again", got.Title, "deleted session is recreated fresh")
}
