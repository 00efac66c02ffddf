// Package rag wires chunking, indexing, retrieval tools, the generation
// loop and conversation state into one query entry point.
package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/ingestion"
	"github.com/course-rag/backend/internal/metrics"
	"github.com/course-rag/backend/internal/storage/models"
	"github.com/course-rag/backend/internal/vector"
	"github.com/course-rag/backend/pkg/logger"
	"github.com/course-rag/backend/pkg/utils"
)

// AnswerGenerator produces the final answer text for one query.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, history string) (string, error)
}

// SourceConsumer hands over the source batch of the last retrieval,
// clearing it.
type SourceConsumer interface {
	ConsumeSources() []domain.Source
}

// SessionStore supplies and records conversation context.
type SessionStore interface {
	NewSessionID() string
	History(sessionID string) string
	Record(sessionID, userMessage, assistantMessage string)
}

// Chunker turns a parsed course into indexed content chunks.
type Chunker interface {
	ChunkCourse(course domain.Course, lessonTexts map[int]string) []domain.CourseChunk
}

// QueryLog persists answered queries and ingestion records. A nil log
// disables persistence; it never affects answering.
type QueryLog interface {
	InsertDocument(doc *models.IngestedDocument) error
	InsertQueryRecord(rec *models.QueryRecord, sources []models.QuerySource) error
}

// Answer is what the query boundary returns to the caller.
type Answer struct {
	Answer    string          `json:"answer"`
	Sources   []domain.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

type System struct {
	store     vector.Store
	chunker   Chunker
	generator AnswerGenerator
	sources   SourceConsumer
	sessions  SessionStore
	queryLog  QueryLog

	// ingestMu serializes index writes so a course's catalog entry and
	// chunks become queryable as a unit.
	ingestMu sync.Mutex
}

func NewSystem(store vector.Store, chunker Chunker, generator AnswerGenerator,
	sources SourceConsumer, sessions SessionStore, queryLog QueryLog) *System {
	return &System{
		store:     store,
		chunker:   chunker,
		generator: generator,
		sources:   sources,
		sessions:  sessions,
		queryLog:  queryLog,
	}
}

// Answer runs one query through the generation loop. sessionID may be
// empty, in which case a new session is created. The caller always gets
// an answer string plus a possibly empty source list; only a model-call
// failure is surfaced as an error.
func (s *System) Answer(ctx context.Context, query, sessionID string) (*Answer, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = s.sessions.NewSessionID()
	}

	history := s.sessions.History(sessionID)

	answerText, err := s.generator.Generate(ctx, query, history)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources := s.sources.ConsumeSources()
	s.sessions.Record(sessionID, query, answerText)

	latency := time.Since(start)
	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.QueryDuration.WithLabelValues(strconv.FormatBool(len(sources) > 0)).Observe(latency.Seconds())
	metrics.SearchResultsCount.Observe(float64(len(sources)))

	s.logQuery(sessionID, query, answerText, sources, latency)

	logger.Info("query answered",
		zap.String("session_id", sessionID),
		zap.Bool("tool_used", len(sources) > 0),
		zap.Int("sources", len(sources)),
		zap.Duration("latency", latency),
	)

	return &Answer{
		Answer:    answerText,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

func (s *System) logQuery(sessionID, query, answer string, sources []domain.Source, latency time.Duration) {
	if s.queryLog == nil {
		return
	}

	rec := &models.QueryRecord{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		QueryText: query,
		Answer:    answer,
		ToolUsed:  len(sources) > 0,
		LatencyMS: int(latency.Milliseconds()),
		CreatedAt: time.Now(),
	}
	rows := make([]models.QuerySource, 0, len(sources))
	for _, src := range sources {
		rows = append(rows, models.QuerySource{
			CourseTitle:  src.CourseTitle,
			LessonNumber: src.LessonNumber,
			Link:         src.Link,
		})
	}
	if err := s.queryLog.InsertQueryRecord(rec, rows); err != nil {
		logger.Warn("failed to persist query record", zap.Error(err))
	}
}

// AddCourse indexes one parsed course document. Ingestion is idempotent
// by course title: an already indexed title is a no-op. The catalog
// entry and content chunks are written under one lock so partially
// ingested courses are never observable.
func (s *System) AddCourse(ctx context.Context, doc *ingestion.CourseDocument, fileName string) (int, bool, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	existing, err := s.store.ListCourseTitles(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to list course titles: %w", err)
	}
	for _, title := range existing {
		if title == doc.Course.Title {
			logger.Info("course already indexed, skipping", zap.String("title", title))
			return 0, true, nil
		}
	}

	chunks := s.chunker.ChunkCourse(doc.Course, doc.LessonTexts)

	entry := vector.CatalogEntry{
		Title:       doc.Course.Title,
		Instructor:  doc.Course.Instructor,
		Link:        doc.Course.Link,
		Lessons:     doc.Course.Lessons,
		LessonCount: len(doc.Course.Lessons),
	}
	if err := s.store.UpsertCourse(ctx, entry); err != nil {
		return 0, false, fmt.Errorf("failed to index course catalog entry: %w", err)
	}
	if err := s.store.UpsertChunks(ctx, chunks); err != nil {
		return 0, false, fmt.Errorf("failed to index course chunks: %w", err)
	}

	metrics.CoursesIndexed.Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	if s.queryLog != nil {
		hash := utils.ContentHash(doc.Course.Title)
		err := s.queryLog.InsertDocument(&models.IngestedDocument{
			ContentHash: hash,
			FileName:    fileName,
			CourseTitle: doc.Course.Title,
			LessonCount: len(doc.Course.Lessons),
			ChunkCount:  len(chunks),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			logger.Warn("failed to record ingested document", zap.Error(err))
		}
	}

	logger.Info("course indexed",
		zap.String("title", doc.Course.Title),
		zap.Int("lessons", len(doc.Course.Lessons)),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), false, nil
}

// AddCourseFolder ingests every supported document in dir. Per-file
// failures are logged and skipped so one bad document cannot block the
// rest of the corpus.
func (s *System) AddCourseFolder(ctx context.Context, dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read course folder: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	courses, chunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !supportedExt(entry.Name()) {
			continue
		}

		doc, err := ingestion.ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("failed to parse course document",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		added, skipped, err := s.AddCourse(ctx, doc, entry.Name())
		if err != nil {
			logger.Warn("failed to index course document",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if !skipped {
			courses++
			chunks += added
		}
	}
	return courses, chunks, nil
}

// Analytics reports catalog-level stats for the courses endpoint.
func (s *System) Analytics(ctx context.Context) (int, []string, error) {
	titles, err := s.store.ListCourseTitles(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list course titles: %w", err)
	}
	return len(titles), titles, nil
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}
