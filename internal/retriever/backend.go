package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/store"
)

// VectorIndex is the slice of the store worker the backend consumes.
type VectorIndex interface {
	QueryVectors(collection string, vector []float32, limit int, where map[string]string) ([]store.VectorResult, error)
	GetCourse(title string) (*store.CourseMeta, error)
	ListCourses() ([]string, error)
}

// Embedder turns text into a vector. Satisfied by the model router.
type Embedder interface {
	RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error)
}

// Backend resolves fuzzy course names against the catalog and runs filtered
// similarity search over course content.
type Backend struct {
	index            VectorIndex
	embedder         Embedder
	embeddingModel   string
	maxResults       int
	resolveThreshold float32
}

type Options struct {
	EmbeddingModel   string
	MaxResults       int
	ResolveThreshold float64
}

func NewBackend(index VectorIndex, embedder Embedder, opts Options) *Backend {
	if opts.MaxResults <= 0 {
		opts.MaxResults = config.DefaultRetrievalMaxResults
	}
	if opts.ResolveThreshold <= 0 {
		opts.ResolveThreshold = config.DefaultRetrievalResolveThreshold
	}
	return &Backend{
		index:            index,
		embedder:         embedder,
		embeddingModel:   opts.EmbeddingModel,
		maxResults:       opts.MaxResults,
		resolveThreshold: float32(opts.ResolveThreshold),
	}
}

// ResolveCourseName maps a partial or fuzzy course name to a canonical catalog
// title via embedding similarity. The best match below the similarity
// threshold counts as no match.
func (b *Backend) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vec, err := b.embedder.RouteEmbedding(ctx, b.embeddingModel, name)
	if err != nil {
		return "", errors.Wrap(err, "embed course name")
	}

	matches, err := b.index.QueryVectors(store.CollectionCatalog, vec, 1, nil)
	if err != nil {
		return "", errors.Wrap(err, "query course catalog")
	}
	if len(matches) == 0 || matches[0].Score < b.resolveThreshold {
		return "", errors.NotFound(fmt.Sprintf("course matching %q", name))
	}

	slog.Debug("resolved course name", "input", name, "title", matches[0].ID, "score", matches[0].Score)
	return matches[0].ID, nil
}

// Search embeds the query and returns the closest content chunks, optionally
// scoped to one course and one lesson. A non-empty courseName is resolved
// first; resolution failure surfaces as an ErrNotFound category error.
func (b *Backend) Search(ctx context.Context, query, courseName string, lessonNumber *int) (SearchResults, error) {
	where := map[string]string{}
	if courseName != "" {
		title, err := b.ResolveCourseName(ctx, courseName)
		if err != nil {
			return SearchResults{}, err
		}
		where["course_title"] = title
	}
	if lessonNumber != nil {
		where["lesson_number"] = strconv.Itoa(*lessonNumber)
	}
	if len(where) == 0 {
		where = nil
	}

	vec, err := b.embedder.RouteEmbedding(ctx, b.embeddingModel, query)
	if err != nil {
		return SearchResults{}, errors.Wrap(err, "embed query")
	}

	matches, err := b.index.QueryVectors(store.CollectionContent, vec, b.maxResults, where)
	if err != nil {
		return SearchResults{}, errors.Wrap(err, "query course content")
	}

	var results SearchResults
	for _, m := range matches {
		lesson := -1
		if raw := m.Metadata["lesson_number"]; raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				lesson = n
			}
		}
		chunkIndex := 0
		if raw := m.Metadata["chunk_index"]; raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				chunkIndex = n
			}
		}
		results.Documents = append(results.Documents, m.Content)
		results.Metadata = append(results.Metadata, ChunkMeta{
			CourseTitle:  m.Metadata["course_title"],
			LessonNumber: lesson,
			ChunkIndex:   chunkIndex,
		})
		results.Scores = append(results.Scores, m.Score)
	}
	return results, nil
}

// FetchCourseMetadata resolves a fuzzy course name and returns the catalog
// entry for the match. Returns an ErrNotFound category error when no course
// matches, and a nil CourseMeta with no error when the catalog entry vanished
// between resolution and lookup.
func (b *Backend) FetchCourseMetadata(ctx context.Context, name string) (*store.CourseMeta, error) {
	title, err := b.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.index.GetCourse(title)
}

// GetCourse returns the catalog entry for an exact title, or nil when absent.
func (b *Backend) GetCourse(title string) (*store.CourseMeta, error) {
	return b.index.GetCourse(title)
}

// GetCourseLink returns the course link for an exact catalog title.
func (b *Backend) GetCourseLink(title string) (string, error) {
	meta, err := b.index.GetCourse(title)
	if err != nil || meta == nil {
		return "", err
	}
	return meta.Link, nil
}

// GetLessonLink returns the lesson link for an exact catalog title and lesson
// number, or "" when either is unknown.
func (b *Backend) GetLessonLink(title string, lessonNumber int) (string, error) {
	meta, err := b.index.GetCourse(title)
	if err != nil || meta == nil {
		return "", err
	}
	for _, lesson := range meta.Lessons {
		if lesson.Number == lessonNumber {
			return lesson.Link, nil
		}
	}
	return "", nil
}

// ListCourseTitles returns all canonical course titles in the catalog.
func (b *Backend) ListCourseTitles() ([]string, error) {
	return b.index.ListCourses()
}
