package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lecternhq/lectern/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	courses map[string]store.CourseMeta
	chunks  []store.Chunk
	deleted []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{courses: make(map[string]store.CourseMeta)}
}

func (f *fakeCatalog) UpsertCourse(meta store.CourseMeta, embedding []float32) error {
	f.courses[meta.Title] = meta
	return nil
}

func (f *fakeCatalog) UpsertChunks(chunks []store.Chunk) error {
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeCatalog) GetCourse(title string) (*store.CourseMeta, error) {
	if meta, ok := f.courses[title]; ok {
		return &meta, nil
	}
	return nil, nil
}

func (f *fakeCatalog) DeleteCourse(title string) error {
	f.deleted = append(f.deleted, title)
	delete(f.courses, title)
	var kept []store.Chunk
	for _, c := range f.chunks {
		if c.CourseTitle != title {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) RouteEmbedding(ctx context.Context, model, text string) ([]float32, error) {
	e.calls++
	return []float32{1, 0, 0}, nil
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestIngestDirectory_LoadsCoursesAndChunks(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"course1.txt": sampleDoc,
		"notes.pdf":   "ignored extension",
	})
	catalog := newFakeCatalog()
	ing := NewIngestor(catalog, &countingEmbedder{}, NewChunker(800, 100), "text-embedding-3-small")

	stats, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesAdded)
	assert.Equal(t, 0, stats.CoursesSkipped)
	assert.Greater(t, stats.ChunksAdded, 0)

	meta, ok := catalog.courses["Building MCP Servers"]
	require.True(t, ok)
	assert.Len(t, meta.Lessons, 2)

	require.NotEmpty(t, catalog.chunks)
	assert.Equal(t, "Building MCP Servers", catalog.chunks[0].CourseTitle)
	assert.Equal(t, 0, catalog.chunks[0].Index)
	assert.NotEmpty(t, catalog.chunks[0].Embedding)
}

func TestIngestDirectory_SkipsKnownCourses(t *testing.T) {
	dir := writeDocs(t, map[string]string{"course1.txt": sampleDoc})
	catalog := newFakeCatalog()
	ing := NewIngestor(catalog, &countingEmbedder{}, NewChunker(800, 100), "m")

	_, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)

	stats, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CoursesAdded)
	assert.Equal(t, 1, stats.CoursesSkipped)
	assert.Empty(t, catalog.deleted)
}

func TestIngestDirectory_ForceReingestsExisting(t *testing.T) {
	dir := writeDocs(t, map[string]string{"course1.txt": sampleDoc})
	catalog := newFakeCatalog()
	ing := NewIngestor(catalog, &countingEmbedder{}, NewChunker(800, 100), "m")

	_, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	firstCount := len(catalog.chunks)

	stats, err := ing.IngestDirectory(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CoursesAdded)
	assert.Equal(t, []string{"Building MCP Servers"}, catalog.deleted)
	assert.Len(t, catalog.chunks, firstCount, "old chunks replaced, not duplicated")
}

func TestIngestDirectory_SidecarOverrides(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"course1.txt": "Course Title: Raw Title\n\nLesson 1: One\nBody text here.\n",
		"course.yaml": "courses:\n  - file: course1.txt\n    title: Clean Title\n",
	})
	catalog := newFakeCatalog()
	ing := NewIngestor(catalog, &countingEmbedder{}, NewChunker(800, 100), "m")

	_, err := ing.IngestDirectory(context.Background(), dir, false)
	require.NoError(t, err)
	_, ok := catalog.courses["Clean Title"]
	assert.True(t, ok)
}

func TestIngestDirectory_MissingDirectory(t *testing.T) {
	ing := NewIngestor(newFakeCatalog(), &countingEmbedder{}, NewChunker(800, 100), "m")

	_, err := ing.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	assert.Error(t, err)
}
