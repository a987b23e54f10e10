package store

import "time"

// Collection names inside the chromem database.
const (
	CollectionCatalog = "course_catalog"
	CollectionContent = "course_content"
)

// --- Course catalog (course_catalog collection) ---

// CourseMeta mirrors a catalog entry: one document per course, keyed by
// title, with lessons serialized into the metadata as JSON.
type CourseMeta struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Chunk is one embeddable slice of course content.
type Chunk struct {
	CourseTitle  string
	LessonNumber int // -1 when the chunk precedes any lesson marker
	Index        int
	Content      string
	Embedding    []float32
}

// --- Session index (sessions/index.json) ---

type SessionMeta struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Status    string            `json:"status"` // "active", "archived"
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"` // e.g. "telegram_chat_id": "123"
}

type SessionIndex struct {
	Sessions map[string]SessionMeta `json:"sessions"`
}

// --- Transcript (sessions/<id>.jsonl) ---

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

type TranscriptEntry struct {
	ID         string         `json:"id"` // ULID
	Timestamp  time.Time      `json:"ts"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Metadata   map[string]any `json:"meta,omitempty"` // rounds, tool call counts
}
