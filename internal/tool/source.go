package tool

import "sync"

// Source is one citation produced while answering a query.
type Source struct {
	CourseTitle    string `json:"course_title"`
	CourseLink     string `json:"course_link,omitempty"`
	LessonNumber   *int   `json:"lesson_number,omitempty"`
	LessonTitle    string `json:"lesson_title,omitempty"`
	LessonLink     string `json:"lesson_link,omitempty"`
	CitationNumber int    `json:"citation_number"`
}

// Tracker accumulates citations for a single query. One tracker is created
// per query, so concurrent queries never share citation state.
type Tracker struct {
	mu      sync.Mutex
	sources []Source
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add appends sources in arrival order. Citation numbers assigned by the
// producing tool are kept as-is, so numbering stays scoped to one tool
// invocation; unnumbered sources get the next accumulated position.
func (t *Tracker) Add(sources ...Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range sources {
		if s.CitationNumber == 0 {
			s.CitationNumber = len(t.sources) + 1
		}
		t.sources = append(t.sources, s)
	}
}

// Drain returns all accumulated sources and resets the tracker. Draining an
// empty tracker yields an empty slice.
func (t *Tracker) Drain() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.sources
	t.sources = nil
	if out == nil {
		out = []Source{}
	}
	return out
}
