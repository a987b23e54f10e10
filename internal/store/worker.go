package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	stdatomic "sync/atomic"
	"time"

	"github.com/lecternhq/lectern/internal/config"

	"github.com/natefinch/atomic"
	"github.com/philippgille/chromem-go"
)

type Operation int

const (
	OpUpsertCourse Operation = iota
	OpUpsertChunks
	OpQueryVectors
	OpGetCourse
	OpListCourses
	OpDeleteCourse
	OpCollectionCount
	OpWriteTranscript
	OpReadTranscript
	OpGetSession
	OpSaveSession
	OpDeleteSession
	OpListSessions
)

type Request struct {
	Op       Operation
	Payload  interface{}
	Result   chan error
	Response chan interface{}
}

type UpsertCoursePayload struct {
	Meta      CourseMeta
	Embedding []float32
}

type UpsertChunksPayload struct {
	Chunks []Chunk
}

type QueryVectorsPayload struct {
	Collection string
	Vector     []float32
	Limit      int
	Where      map[string]string
}

type GetCoursePayload struct {
	Title string
}

type DeleteCoursePayload struct {
	Title string
}

type CollectionCountPayload struct {
	Collection string
}

type TranscriptPayload struct {
	SessionID string
	Data      []byte // JSON line
}

type ReadTranscriptPayload struct {
	SessionID string
	Limit     int // 0 = all
}

type GetSessionPayload struct {
	SessionID string
}

type SaveSessionPayload struct {
	Session *SessionMeta
}

type DeleteSessionPayload struct {
	SessionID string
}

type VectorResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
	Content  string
}

// Worker serializes all reads and writes against the data directory through
// a single goroutine. Callers talk to it via the inbox channel.
type Worker struct {
	basePath     string
	inbox        chan Request
	fileLock     *FileLock
	quit         chan struct{}
	wg           sync.WaitGroup
	sessionIndex *SessionIndex
	courseIndex  map[string]CourseMeta
	vectorDB     *chromem.DB
	running      stdatomic.Bool
}

type RuntimeConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
	InboxSize    int
}

func NewWorker(dataPath string, runtimeCfg RuntimeConfig) (*Worker, error) {
	basePath, err := ResolveDataPath(dataPath)
	if err != nil {
		return nil, err
	}

	sessionsDir, err := GetSessionsDir(basePath)
	if err != nil {
		return nil, err
	}
	vectorsDir, err := GetVectorsDir(basePath)
	if err != nil {
		return nil, err
	}
	for _, d := range []string{sessionsDir, vectorsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", d, err)
		}
	}

	if runtimeCfg.LockTimeout <= 0 {
		lockTimeout, err := config.DurationOrDefault("", config.DefaultStoreLockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock timeout: %w", err)
		}
		runtimeCfg.LockTimeout = lockTimeout
	}
	if runtimeCfg.LockRetry <= 0 {
		lockRetry, err := config.DurationOrDefault("", config.DefaultStoreLockRetry)
		if err != nil {
			return nil, fmt.Errorf("parse default store lock retry: %w", err)
		}
		runtimeCfg.LockRetry = lockRetry
	}
	if runtimeCfg.LockMaxRetry <= 0 {
		runtimeCfg.LockMaxRetry = config.DefaultStoreLockMaxRetry
	}
	if runtimeCfg.InboxSize <= 0 {
		runtimeCfg.InboxSize = config.DefaultStoreInboxSize
	}

	fileLock, err := NewFileLock(basePath, &FileLockConfig{
		LockTimeout:  runtimeCfg.LockTimeout,
		LockRetry:    runtimeCfg.LockRetry,
		LockMaxRetry: runtimeCfg.LockMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	sessionIndex := &SessionIndex{Sessions: make(map[string]SessionMeta)}
	indexPath := filepath.Join(sessionsDir, "index.json")
	if data, err := os.ReadFile(indexPath); err == nil {
		if err := json.Unmarshal(data, sessionIndex); err != nil {
			slog.Warn("Failed to parse session index, starting fresh", "error", err)
		}
	}

	courseIndex := make(map[string]CourseMeta)
	catalogPath := filepath.Join(basePath, "catalog.json")
	if data, err := os.ReadFile(catalogPath); err == nil {
		if err := json.Unmarshal(data, &courseIndex); err != nil {
			slog.Warn("Failed to parse course catalog index, starting fresh", "error", err)
			courseIndex = make(map[string]CourseMeta)
		}
	}

	// Embeddings are provided by the caller, so no embedding func is wired in.
	vectorDB, err := chromem.NewPersistentDB(vectorsDir, false)
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to init vector db: %w", err)
	}

	return &Worker{
		basePath:     basePath,
		inbox:        make(chan Request, runtimeCfg.InboxSize),
		fileLock:     fileLock,
		quit:         make(chan struct{}),
		sessionIndex: sessionIndex,
		courseIndex:  courseIndex,
		vectorDB:     vectorDB,
	}, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	slog.Info("StoreWorker started", "path", w.basePath)
	w.running.Store(true)
	defer func() {
		w.running.Store(false)
		w.wg.Done()
	}()

	for {
		select {
		case req := <-w.inbox:
			err := w.handle(req)
			if req.Result != nil {
				req.Result <- err
			}
		case <-w.quit:
			slog.Info("StoreWorker stopping")
			return
		}
	}
}

func (w *Worker) handle(req Request) error {
	switch req.Op {
	case OpUpsertCourse:
		p, ok := req.Payload.(UpsertCoursePayload)
		if !ok {
			return fmt.Errorf("invalid payload for UpsertCourse")
		}
		return w.upsertCourse(p)
	case OpUpsertChunks:
		p, ok := req.Payload.(UpsertChunksPayload)
		if !ok {
			return fmt.Errorf("invalid payload for UpsertChunks")
		}
		return w.upsertChunks(p.Chunks)
	case OpQueryVectors:
		p, ok := req.Payload.(QueryVectorsPayload)
		if !ok {
			return fmt.Errorf("invalid payload for QueryVectors")
		}
		res, err := w.queryVectors(p)
		if req.Response != nil {
			req.Response <- res
		}
		return err
	case OpGetCourse:
		p, ok := req.Payload.(GetCoursePayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetCourse")
		}
		meta, err := w.getCourse(p.Title)
		if req.Response != nil {
			req.Response <- meta
		}
		return err
	case OpListCourses:
		titles, err := w.listCourses()
		if req.Response != nil {
			req.Response <- titles
		}
		return err
	case OpDeleteCourse:
		p, ok := req.Payload.(DeleteCoursePayload)
		if !ok {
			return fmt.Errorf("invalid payload for DeleteCourse")
		}
		return w.deleteCourse(p.Title)
	case OpCollectionCount:
		p, ok := req.Payload.(CollectionCountPayload)
		if !ok {
			return fmt.Errorf("invalid payload for CollectionCount")
		}
		count := 0
		if col := w.vectorDB.GetCollection(p.Collection, nil); col != nil {
			count = col.Count()
		}
		if req.Response != nil {
			req.Response <- count
		}
		return nil
	case OpWriteTranscript:
		p, ok := req.Payload.(TranscriptPayload)
		if !ok {
			return fmt.Errorf("invalid payload for WriteTranscript")
		}
		return w.appendTranscript(p.SessionID, p.Data)
	case OpReadTranscript:
		p, ok := req.Payload.(ReadTranscriptPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ReadTranscript")
		}
		lines, err := w.readTranscript(p.SessionID, p.Limit)
		if req.Response != nil {
			req.Response <- lines
		}
		return err
	case OpGetSession:
		p, ok := req.Payload.(GetSessionPayload)
		if !ok {
			return fmt.Errorf("invalid payload for GetSession")
		}
		if sess, ok := w.sessionIndex.Sessions[p.SessionID]; ok {
			if req.Response != nil {
				req.Response <- &sess
			}
		} else if req.Response != nil {
			req.Response <- nil
		}
		return nil
	case OpSaveSession:
		p, ok := req.Payload.(SaveSessionPayload)
		if !ok {
			return fmt.Errorf("invalid payload for SaveSession")
		}
		w.sessionIndex.Sessions[p.Session.ID] = *p.Session
		return w.saveSessionIndex()
	case OpDeleteSession:
		p, ok := req.Payload.(DeleteSessionPayload)
		if !ok {
			return fmt.Errorf("invalid payload for DeleteSession")
		}
		return w.deleteSession(p.SessionID)
	case OpListSessions:
		ids := make([]string, 0, len(w.sessionIndex.Sessions))
		for id := range w.sessionIndex.Sessions {
			ids = append(ids, id)
		}
		if req.Response != nil {
			req.Response <- ids
		}
		return nil
	default:
		return fmt.Errorf("unknown operation: %d", req.Op)
	}
}

func (w *Worker) upsertCourse(p UpsertCoursePayload) error {
	col, err := w.vectorDB.GetOrCreateCollection(CollectionCatalog, nil, nil)
	if err != nil {
		return err
	}

	lessonsJSON, err := json.Marshal(p.Meta.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}

	metadata := map[string]string{
		"course_link":  p.Meta.Link,
		"instructor":   p.Meta.Instructor,
		"lessons_json": string(lessonsJSON),
	}

	// AddDocuments is upsert in chromem; ID doubles as the canonical title.
	if err := col.AddDocuments(context.Background(), []chromem.Document{
		{
			ID:        p.Meta.Title,
			Metadata:  metadata,
			Embedding: p.Embedding,
			Content:   p.Meta.Title,
		},
	}, 1); err != nil {
		return err
	}

	w.courseIndex[p.Meta.Title] = p.Meta
	return w.saveCourseIndex()
}

func (w *Worker) upsertChunks(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := w.vectorDB.GetOrCreateCollection(CollectionContent, nil, nil)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        fmt.Sprintf("%s#%d", c.CourseTitle, c.Index),
			Embedding: c.Embedding,
			Content:   c.Content,
			Metadata: map[string]string{
				"course_title":  c.CourseTitle,
				"lesson_number": strconv.Itoa(c.LessonNumber),
				"chunk_index":   strconv.Itoa(c.Index),
			},
		})
	}
	return col.AddDocuments(context.Background(), docs, 1)
}

func (w *Worker) queryVectors(p QueryVectorsPayload) ([]VectorResult, error) {
	col := w.vectorDB.GetCollection(p.Collection, nil)
	if col == nil {
		return []VectorResult{}, nil
	}

	// chromem rejects nResults greater than the candidate set size.
	limit := p.Limit
	count := col.Count()
	if count == 0 {
		return []VectorResult{}, nil
	}
	if limit > count {
		limit = count
	}

	docs, err := col.QueryEmbedding(context.Background(), p.Vector, limit, p.Where, nil)
	if err != nil {
		return nil, err
	}

	var results []VectorResult
	for _, doc := range docs {
		results = append(results, VectorResult{
			ID:       doc.ID,
			Score:    doc.Similarity,
			Metadata: doc.Metadata,
			Content:  doc.Content,
		})
	}
	return results, nil
}

func (w *Worker) getCourse(title string) (*CourseMeta, error) {
	meta, ok := w.courseIndex[title]
	if !ok {
		return nil, nil
	}
	out := meta
	return &out, nil
}

func (w *Worker) listCourses() ([]string, error) {
	titles := make([]string, 0, len(w.courseIndex))
	for title := range w.courseIndex {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles, nil
}

func (w *Worker) deleteCourse(title string) error {
	ctx := context.Background()
	if col := w.vectorDB.GetCollection(CollectionContent, nil); col != nil {
		if err := col.Delete(ctx, map[string]string{"course_title": title}, nil); err != nil {
			return err
		}
	}
	if col := w.vectorDB.GetCollection(CollectionCatalog, nil); col != nil {
		if err := col.Delete(ctx, nil, nil, title); err != nil {
			return err
		}
	}
	delete(w.courseIndex, title)
	return w.saveCourseIndex()
}

func (w *Worker) saveCourseIndex() error {
	path := filepath.Join(w.basePath, "catalog.json")
	data, err := json.MarshalIndent(w.courseIndex, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (w *Worker) readTranscript(sessionID string, limit int) ([]string, error) {
	path := filepath.Join(w.basePath, "sessions", sessionID+".jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}

	if limit > 0 && len(lines) > limit {
		return lines[len(lines)-limit:], nil
	}
	return lines, nil
}

func (w *Worker) saveSessionIndex() error {
	path := filepath.Join(w.basePath, "sessions", "index.json")
	data, err := json.MarshalIndent(w.sessionIndex, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (w *Worker) appendTranscript(sessionID string, data []byte) error {
	path := filepath.Join(w.basePath, "sessions", sessionID+".jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	return f.Sync()
}

func (w *Worker) deleteSession(sessionID string) error {
	path := filepath.Join(w.basePath, "sessions", sessionID+".jsonl")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(w.sessionIndex.Sessions, sessionID)
	return w.saveSessionIndex()
}

// Public API for other components

func (w *Worker) UpsertCourse(meta CourseMeta, embedding []float32) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpUpsertCourse,
		Payload: UpsertCoursePayload{Meta: meta, Embedding: embedding},
		Result:  res,
	}
	return <-res
}

func (w *Worker) UpsertChunks(chunks []Chunk) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpUpsertChunks,
		Payload: UpsertChunksPayload{Chunks: chunks},
		Result:  res,
	}
	return <-res
}

func (w *Worker) QueryVectors(collection string, vector []float32, limit int, where map[string]string) ([]VectorResult, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op: OpQueryVectors,
		Payload: QueryVectorsPayload{
			Collection: collection,
			Vector:     vector,
			Limit:      limit,
			Where:      where,
		},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]VectorResult), nil
}

func (w *Worker) GetCourse(title string) (*CourseMeta, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op:       OpGetCourse,
		Payload:  GetCoursePayload{Title: title},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil // Not found
	}
	return val.(*CourseMeta), nil
}

func (w *Worker) ListCourses() ([]string, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op:       OpListCourses,
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]string), nil
}

func (w *Worker) DeleteCourse(title string) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpDeleteCourse,
		Payload: DeleteCoursePayload{Title: title},
		Result:  res,
	}
	return <-res
}

func (w *Worker) CollectionCount(collection string) (int, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op:       OpCollectionCount,
		Payload:  CollectionCountPayload{Collection: collection},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return 0, err
	}
	val := <-resp
	return val.(int), nil
}

func (w *Worker) WriteTranscript(sessionID string, data []byte) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpWriteTranscript,
		Payload: TranscriptPayload{SessionID: sessionID, Data: data},
		Result:  res,
	}
	return <-res
}

func (w *Worker) ReadTranscript(sessionID string, limit int) ([]string, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op: OpReadTranscript,
		Payload: ReadTranscriptPayload{
			SessionID: sessionID,
			Limit:     limit,
		},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]string), nil
}

func (w *Worker) GetSession(id string) (*SessionMeta, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op:       OpGetSession,
		Payload:  GetSessionPayload{SessionID: id},
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	if val == nil {
		return nil, nil // Not found
	}
	return val.(*SessionMeta), nil
}

func (w *Worker) SaveSession(session *SessionMeta) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpSaveSession,
		Payload: SaveSessionPayload{Session: session},
		Result:  res,
	}
	return <-res
}

func (w *Worker) DeleteSession(sessionID string) error {
	res := make(chan error, 1)
	w.inbox <- Request{
		Op:      OpDeleteSession,
		Payload: DeleteSessionPayload{SessionID: sessionID},
		Result:  res,
	}
	return <-res
}

func (w *Worker) ListSessions() ([]string, error) {
	res := make(chan error, 1)
	resp := make(chan interface{}, 1)
	w.inbox <- Request{
		Op:       OpListSessions,
		Result:   res,
		Response: resp,
	}
	if err := <-res; err != nil {
		return nil, err
	}
	val := <-resp
	return val.([]string), nil
}

func (w *Worker) Stop() {
	slog.Info("StoreWorker Stop called", "lock_held", w.fileLock.IsLocked())

	close(w.quit)
	w.wg.Wait()

	if w.fileLock.IsLocked() {
		w.fileLock.Unlock()
	}
}

func (w *Worker) IsRunning() bool {
	return w.fileLock.IsLocked() && w.running.Load()
}
