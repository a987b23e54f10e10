package retriever

import (
	"context"
	"testing"

	lecternErrors "github.com/lecternhq/lectern/internal/errors"
	"github.com/lecternhq/lectern/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	catalogResults []store.VectorResult
	contentResults []store.VectorResult
	courses        map[string]*store.CourseMeta
	queryErr       error

	gotCollection string
	gotLimit      int
	gotWhere      map[string]string
}

func (f *fakeIndex) QueryVectors(collection string, vector []float32, limit int, where map[string]string) ([]store.VectorResult, error) {
	f.gotCollection = collection
	f.gotLimit = limit
	f.gotWhere = where
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if collection == store.CollectionCatalog {
		return f.catalogResults, nil
	}
	return f.contentResults, nil
}

func (f *fakeIndex) GetCourse(title string) (*store.CourseMeta, error) {
	if meta, ok := f.courses[title]; ok {
		return meta, nil
	}
	return nil, nil
}

func (f *fakeIndex) ListCourses() ([]string, error) {
	titles := make([]string, 0, len(f.courses))
	for t := range f.courses {
		titles = append(titles, t)
	}
	return titles, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) RouteEmbedding(ctx context.Context, model, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vec != nil {
		return f.vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestBackend_ResolveCourseName_MatchAboveThreshold(t *testing.T) {
	index := &fakeIndex{
		catalogResults: []store.VectorResult{{ID: "MCP Basics", Score: 0.9}},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{ResolveThreshold: 0.35})

	title, err := b.ResolveCourseName(context.Background(), "mcp")
	require.NoError(t, err)
	assert.Equal(t, "MCP Basics", title)
	assert.Equal(t, store.CollectionCatalog, index.gotCollection)
	assert.Equal(t, 1, index.gotLimit)
}

func TestBackend_ResolveCourseName_BelowThresholdIsNotFound(t *testing.T) {
	index := &fakeIndex{
		catalogResults: []store.VectorResult{{ID: "Unrelated Course", Score: 0.1}},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{ResolveThreshold: 0.35})

	_, err := b.ResolveCourseName(context.Background(), "quantum basket weaving")
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrNotFound))
}

func TestBackend_ResolveCourseName_EmptyCatalogIsNotFound(t *testing.T) {
	b := NewBackend(&fakeIndex{}, &fakeEmbedder{}, Options{})

	_, err := b.ResolveCourseName(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrNotFound))
}

func TestBackend_Search_Unfiltered(t *testing.T) {
	index := &fakeIndex{
		contentResults: []store.VectorResult{
			{
				Content:  "chunk text",
				Score:    0.8,
				Metadata: map[string]string{"course_title": "MCP Basics", "lesson_number": "2", "chunk_index": "7"},
			},
		},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{MaxResults: 5})

	results, err := b.Search(context.Background(), "what is a tool", "", nil)
	require.NoError(t, err)
	require.Len(t, results.Documents, 1)
	assert.Equal(t, "chunk text", results.Documents[0])
	assert.Equal(t, "MCP Basics", results.Metadata[0].CourseTitle)
	assert.Equal(t, 2, results.Metadata[0].LessonNumber)
	assert.Equal(t, 7, results.Metadata[0].ChunkIndex)
	assert.Nil(t, index.gotWhere)
	assert.Equal(t, 5, index.gotLimit)
}

func TestBackend_Search_CourseAndLessonFilter(t *testing.T) {
	index := &fakeIndex{
		catalogResults: []store.VectorResult{{ID: "MCP Basics", Score: 0.9}},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{})

	lesson := 3
	_, err := b.Search(context.Background(), "q", "mcp", &lesson)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"course_title":  "MCP Basics",
		"lesson_number": "3",
	}, index.gotWhere)
}

func TestBackend_Search_ResolutionFailurePropagates(t *testing.T) {
	b := NewBackend(&fakeIndex{}, &fakeEmbedder{}, Options{})

	_, err := b.Search(context.Background(), "q", "ghost course", nil)
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrNotFound))
}

func TestBackend_Search_MissingLessonMetadataDefaultsToMinusOne(t *testing.T) {
	index := &fakeIndex{
		contentResults: []store.VectorResult{
			{Content: "preamble", Metadata: map[string]string{"course_title": "C"}},
		},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{})

	results, err := b.Search(context.Background(), "q", "", nil)
	require.NoError(t, err)
	assert.Equal(t, -1, results.Metadata[0].LessonNumber)
}

func TestBackend_Search_EmbedFailure(t *testing.T) {
	b := NewBackend(&fakeIndex{}, &fakeEmbedder{err: lecternErrors.Transient("embedding api down")}, Options{})

	_, err := b.Search(context.Background(), "q", "", nil)
	require.Error(t, err)
	assert.True(t, lecternErrors.IsCategory(err, lecternErrors.ErrTransient))
}

func TestBackend_FetchCourseMetadata(t *testing.T) {
	index := &fakeIndex{
		catalogResults: []store.VectorResult{{ID: "MCP Basics", Score: 0.9}},
		courses: map[string]*store.CourseMeta{
			"MCP Basics": {Title: "MCP Basics", Instructor: "Ada"},
		},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{})

	meta, err := b.FetchCourseMetadata(context.Background(), "mcp")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Ada", meta.Instructor)
}

func TestBackend_GetLessonLink(t *testing.T) {
	index := &fakeIndex{
		courses: map[string]*store.CourseMeta{
			"C": {
				Title:   "C",
				Lessons: []store.Lesson{{Number: 1, Link: "https://example.com/1"}},
			},
		},
	}
	b := NewBackend(index, &fakeEmbedder{}, Options{})

	link, err := b.GetLessonLink("C", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1", link)

	link, err = b.GetLessonLink("C", 99)
	require.NoError(t, err)
	assert.Empty(t, link)
}
