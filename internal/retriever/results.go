package retriever

// ChunkMeta carries the provenance of one matched content chunk.
type ChunkMeta struct {
	CourseTitle  string
	LessonNumber int // -1 when the chunk has no lesson attribution
	ChunkIndex   int
}

// SearchResults is the backend's answer to one content query. Documents and
// Metadata are parallel slices ordered by descending similarity.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMeta
	Scores    []float32
}

func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}
