package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/retriever"
	"github.com/lecternhq/lectern/internal/store"
)

// SearchBackend is the slice of the retrieval backend the search tool needs.
type SearchBackend interface {
	Search(ctx context.Context, query, courseName string, lessonNumber *int) (retriever.SearchResults, error)
	GetCourse(title string) (*store.CourseMeta, error)
}

// SearchTool searches course content with fuzzy course name matching and
// optional lesson filtering.
type SearchTool struct {
	backend SearchBackend
}

func NewSearchTool(backend SearchBackend) *SearchTool {
	return &SearchTool{backend: backend}
}

func (t *SearchTool) Name() string {
	return "search_course_content"
}

func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering"
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to search for in the course content",
			},
			"course_name": map[string]interface{}{
				"type":        "string",
				"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": map[string]interface{}{
				"type":        "integer",
				"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		},
		"required": []string{"query"},
	}
}

type searchInput struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) Outcome {
	var in searchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Outcome{Kind: KindInternalError, Text: fmt.Sprintf("Search tool error: %v", err)}
	}

	results, err := t.backend.Search(ctx, in.Query, in.CourseName, in.LessonNumber)
	if err != nil {
		if errors.IsCategory(err, errors.ErrNotFound) {
			return Outcome{
				Kind: KindResolutionFailed,
				Text: fmt.Sprintf("No course found matching '%s'", in.CourseName),
			}
		}
		return Outcome{Kind: KindBackendError, Text: fmt.Sprintf("Search tool error: %v", err)}
	}

	if results.IsEmpty() {
		filterInfo := ""
		if in.CourseName != "" {
			filterInfo += fmt.Sprintf(" in course '%s'", in.CourseName)
		}
		if in.LessonNumber != nil {
			filterInfo += fmt.Sprintf(" in lesson %d", *in.LessonNumber)
		}
		return Outcome{Kind: KindEmpty, Text: fmt.Sprintf("No relevant content found%s.", filterInfo)}
	}

	return t.formatResults(results)
}

// formatResults renders each chunk under a [Course - Lesson N] header and
// collects one deduplicated citation per course/lesson pair. Citation numbers
// start at 1 within each invocation.
func (t *SearchTool) formatResults(results retriever.SearchResults) Outcome {
	var formatted []string
	var sources []Source
	seen := map[string]bool{}

	for i, doc := range results.Documents {
		meta := results.Metadata[i]
		courseTitle := meta.CourseTitle
		if courseTitle == "" {
			courseTitle = "unknown"
		}

		header := "[" + courseTitle
		if meta.LessonNumber >= 0 {
			header += fmt.Sprintf(" - Lesson %d", meta.LessonNumber)
		}
		header += "]"

		sourceKey := fmt.Sprintf("%s_%d", courseTitle, meta.LessonNumber)
		if !seen[sourceKey] {
			seen[sourceKey] = true
			src := t.buildSource(courseTitle, meta.LessonNumber)
			src.CitationNumber = len(sources) + 1
			sources = append(sources, src)
		}

		formatted = append(formatted, header+"\n"+doc)
	}

	return Outcome{
		Kind:    KindOK,
		Text:    strings.Join(formatted, "\n\n"),
		Sources: sources,
	}
}

func (t *SearchTool) buildSource(courseTitle string, lessonNumber int) Source {
	src := Source{CourseTitle: courseTitle}

	meta, err := t.backend.GetCourse(courseTitle)
	if err != nil || meta == nil {
		if lessonNumber >= 0 {
			n := lessonNumber
			src.LessonNumber = &n
		}
		return src
	}

	src.CourseLink = meta.Link
	if lessonNumber >= 0 {
		n := lessonNumber
		src.LessonNumber = &n
		for _, lesson := range meta.Lessons {
			if lesson.Number == lessonNumber {
				src.LessonTitle = lesson.Title
				src.LessonLink = lesson.Link
				break
			}
		}
	}
	return src
}
