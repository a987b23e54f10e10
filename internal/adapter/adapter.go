package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/lecternhq/lectern/internal/orchestrator"
)

// QueryHandler answers one user question. This callback keeps adapters
// decoupled from the orchestrator package's construction.
type QueryHandler func(ctx context.Context, sessionID, query string) (*orchestrator.Answer, error)

// Adapter is a chat surface that receives questions and sends back answers.
type Adapter interface {
	// Name returns the adapter name (e.g. "slack", "telegram").
	Name() string

	// Start begins listening for messages (e.g. starts a server or long-poll).
	// Must respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks if the adapter is healthy and connected.
	Health(ctx context.Context) error
}

// FormatReply renders an answer with its citations for plain-text chat.
func FormatReply(answer *orchestrator.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)

	if len(answer.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, src := range answer.Sources {
			line := fmt.Sprintf("%d. %s", src.CitationNumber, src.CourseTitle)
			if src.LessonNumber != nil {
				line += fmt.Sprintf(" - Lesson %d", *src.LessonNumber)
				if src.LessonTitle != "" {
					line += ": " + src.LessonTitle
				}
			}
			if link := sourceLink(src.LessonLink, src.CourseLink); link != "" {
				line += " (" + link + ")"
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sourceLink(lessonLink, courseLink string) string {
	if lessonLink != "" {
		return lessonLink
	}
	return courseLink
}
