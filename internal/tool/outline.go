package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/store"
)

// OutlineBackend is the slice of the retrieval backend the outline tool needs.
type OutlineBackend interface {
	FetchCourseMetadata(ctx context.Context, name string) (*store.CourseMeta, error)
}

// OutlineTool retrieves the full lesson list for a course. Outlines are
// course-level structure, not passage evidence, so it records no citations.
type OutlineTool struct {
	backend OutlineBackend
}

func NewOutlineTool(backend OutlineBackend) *OutlineTool {
	return &OutlineTool{backend: backend}
}

func (t *OutlineTool) Name() string {
	return "get_course_outline"
}

func (t *OutlineTool) Description() string {
	return "Retrieve the complete outline of a course including its title, link, and full list of lessons. " +
		"Use this when users ask about course structure, lessons list, course content overview, or what topics a course covers."
}

func (t *OutlineTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"course_name": map[string]interface{}{
				"type":        "string",
				"description": "Course title or partial name (fuzzy matching supported, e.g., 'MCP', 'prompt engineering')",
			},
		},
		"required": []string{"course_name"},
	}
}

type outlineInput struct {
	CourseName string `json:"course_name"`
}

func (t *OutlineTool) Execute(ctx context.Context, input json.RawMessage) Outcome {
	var in outlineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return Outcome{Kind: KindInternalError, Text: fmt.Sprintf("Error retrieving course outline: %v", err)}
	}

	meta, err := t.backend.FetchCourseMetadata(ctx, in.CourseName)
	if err != nil {
		if errors.IsCategory(err, errors.ErrNotFound) {
			return Outcome{
				Kind: KindResolutionFailed,
				Text: fmt.Sprintf("No course found matching '%s'. Please try a different course name or check available courses.", in.CourseName),
			}
		}
		return Outcome{Kind: KindBackendError, Text: fmt.Sprintf("Error retrieving course outline: %v", err)}
	}
	// Lessons are stored structurally, so a course cannot reach here with an
	// unparseable lesson list. Missing metadata and an empty list are the only
	// degraded shapes, and both map to KindMalformedMetadata.
	if meta == nil {
		return Outcome{
			Kind: KindMalformedMetadata,
			Text: fmt.Sprintf("Course matching '%s' exists but has no metadata available.", in.CourseName),
		}
	}

	if len(meta.Lessons) == 0 {
		return Outcome{
			Kind: KindMalformedMetadata,
			Text: fmt.Sprintf("Course '%s' has an empty lessons list.", meta.Title),
		}
	}

	return Outcome{
		Kind: KindOK,
		Text: t.formatOutline(meta),
	}
}

func (t *OutlineTool) formatOutline(meta *store.CourseMeta) string {
	output := []string{fmt.Sprintf("Course: %s", meta.Title)}

	if meta.Link != "" {
		output = append(output, fmt.Sprintf("Link: %s", meta.Link))
	}
	if meta.Instructor != "" {
		output = append(output, fmt.Sprintf("Instructor: %s", meta.Instructor))
	}

	output = append(output, fmt.Sprintf("\nLessons (%d total):", len(meta.Lessons)))

	lessons := make([]store.Lesson, len(meta.Lessons))
	copy(lessons, meta.Lessons)
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Number < lessons[j].Number })

	for _, lesson := range lessons {
		title := lesson.Title
		if title == "" {
			title = "Untitled"
		}
		line := fmt.Sprintf("  %d. %s", lesson.Number, title)
		if lesson.Link != "" {
			line += fmt.Sprintf(" - %s", lesson.Link)
		}
		output = append(output, line)
	}

	return strings.Join(output, "\n")
}
