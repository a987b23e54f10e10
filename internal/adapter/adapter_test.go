package adapter

import (
	"testing"

	"github.com/lecternhq/lectern/internal/orchestrator"
	"github.com/lecternhq/lectern/internal/tool"

	"github.com/stretchr/testify/assert"
)

func TestFormatReply_NoSources(t *testing.T) {
	got := FormatReply(&orchestrator.Answer{Text: "Just an answer."})
	assert.Equal(t, "Just an answer.", got)
}

func TestFormatReply_WithLessonSource(t *testing.T) {
	lesson := 4
	answer := &orchestrator.Answer{
		Text: "Lesson 4 is about prompts.",
		Sources: []tool.Source{
			{
				CourseTitle:    "Prompt Engineering",
				LessonNumber:   &lesson,
				LessonTitle:    "Prompt Design",
				LessonLink:     "https://example.com/pe/4",
				CitationNumber: 1,
			},
		},
	}

	want := "Lesson 4 is about prompts.\n\nSources:\n" +
		"1. Prompt Engineering - Lesson 4: Prompt Design (https://example.com/pe/4)"
	assert.Equal(t, want, FormatReply(answer))
}

func TestFormatReply_CourseLevelSourceFallsBackToCourseLink(t *testing.T) {
	answer := &orchestrator.Answer{
		Text: "Here is the outline.",
		Sources: []tool.Source{
			{CourseTitle: "MCP Basics", CourseLink: "https://example.com/mcp", CitationNumber: 1},
		},
	}

	want := "Here is the outline.\n\nSources:\n1. MCP Basics (https://example.com/mcp)"
	assert.Equal(t, want, FormatReply(answer))
}

func TestFormatReply_MultipleSourcesKeepOrder(t *testing.T) {
	l1, l2 := 1, 2
	answer := &orchestrator.Answer{
		Text: "answer",
		Sources: []tool.Source{
			{CourseTitle: "A", LessonNumber: &l1, CitationNumber: 1},
			{CourseTitle: "B", LessonNumber: &l2, CitationNumber: 2},
		},
	}

	want := "answer\n\nSources:\n1. A - Lesson 1\n2. B - Lesson 2"
	assert.Equal(t, want, FormatReply(answer))
}
