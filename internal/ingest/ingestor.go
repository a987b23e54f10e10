package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lecternhq/lectern/internal/store"
)

// CatalogStore is the slice of the store worker the ingestor writes through.
type CatalogStore interface {
	UpsertCourse(meta store.CourseMeta, embedding []float32) error
	UpsertChunks(chunks []store.Chunk) error
	GetCourse(title string) (*store.CourseMeta, error)
	DeleteCourse(title string) error
}

// Embedder turns text into a vector. Satisfied by the model router.
type Embedder interface {
	RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error)
}

// Ingestor walks a docs directory and loads course files into the store.
type Ingestor struct {
	store          CatalogStore
	embedder       Embedder
	chunker        *Chunker
	embeddingModel string
}

func NewIngestor(s CatalogStore, embedder Embedder, chunker *Chunker, embeddingModel string) *Ingestor {
	return &Ingestor{
		store:          s,
		embedder:       embedder,
		chunker:        chunker,
		embeddingModel: embeddingModel,
	}
}

// Stats summarizes one ingest run.
type Stats struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
}

// IngestDirectory loads every .txt/.md course file under docsPath. Courses
// already in the catalog are skipped unless force is set, in which case their
// old chunks are removed first.
func (ing *Ingestor) IngestDirectory(ctx context.Context, docsPath string, force bool) (*Stats, error) {
	entries, err := os.ReadDir(docsPath)
	if err != nil {
		return nil, fmt.Errorf("read docs directory: %w", err)
	}

	sidecar, err := LoadSidecar(docsPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".txt" || ext == ".md" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	stats := &Stats{}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		added, chunks, err := ing.ingestFile(ctx, docsPath, name, sidecar, force)
		if err != nil {
			slog.Error("failed to ingest course file", "file", name, "error", err)
			continue
		}
		if added {
			stats.CoursesAdded++
			stats.ChunksAdded += chunks
		} else {
			stats.CoursesSkipped++
		}
	}

	slog.Info("ingest complete",
		"added", stats.CoursesAdded,
		"skipped", stats.CoursesSkipped,
		"chunks", stats.ChunksAdded,
	)
	return stats, nil
}

func (ing *Ingestor) ingestFile(ctx context.Context, docsPath, name string, sidecar *Sidecar, force bool) (bool, int, error) {
	doc, err := ParseFile(filepath.Join(docsPath, name))
	if err != nil {
		return false, 0, err
	}
	sidecar.Apply(name, doc)

	existing, err := ing.store.GetCourse(doc.Meta.Title)
	if err != nil {
		return false, 0, err
	}
	if existing != nil {
		if !force {
			slog.Debug("course already ingested, skipping", "course", doc.Meta.Title)
			return false, 0, nil
		}
		if err := ing.store.DeleteCourse(doc.Meta.Title); err != nil {
			return false, 0, err
		}
	}

	return ing.ingestDocument(ctx, doc)
}

func (ing *Ingestor) ingestDocument(ctx context.Context, doc *Document) (bool, int, error) {
	titleVec, err := ing.embedder.RouteEmbedding(ctx, ing.embeddingModel, doc.Meta.Title)
	if err != nil {
		return false, 0, fmt.Errorf("embed course title: %w", err)
	}
	if err := ing.store.UpsertCourse(doc.Meta, titleVec); err != nil {
		return false, 0, err
	}

	var chunks []store.Chunk
	index := 0
	for _, lesson := range doc.Content {
		for _, piece := range ing.chunker.Chunk(lesson.Text) {
			vec, err := ing.embedder.RouteEmbedding(ctx, ing.embeddingModel, piece)
			if err != nil {
				return false, 0, fmt.Errorf("embed chunk %d: %w", index, err)
			}
			chunks = append(chunks, store.Chunk{
				CourseTitle:  doc.Meta.Title,
				LessonNumber: lesson.Number,
				Index:        index,
				Content:      piece,
				Embedding:    vec,
			})
			index++
		}
	}

	if err := ing.store.UpsertChunks(chunks); err != nil {
		return false, 0, err
	}

	slog.Info("course ingested", "course", doc.Meta.Title, "lessons", len(doc.Meta.Lessons), "chunks", len(chunks))
	return true, len(chunks), nil
}
