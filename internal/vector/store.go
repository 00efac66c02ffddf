// Package vector defines the dual-collection vector store used for
// course discovery (catalog) and answer-grounding search (content).
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/course-rag/backend/internal/domain"
)

// ErrInvalidLimit is returned when a caller requests a non-positive
// number of results. This is a configuration error and must be rejected
// before the query reaches the underlying engine.
var ErrInvalidLimit = errors.New("search limit must be a positive integer")

// Embedder turns text into fixed-length vectors. It is supplied
// externally; any instance-consistent model works.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CatalogEntry is the one-per-course document in the catalog collection.
// The course title is both the primary key and the embedding target.
type CatalogEntry struct {
	Title       string
	Instructor  string
	Link        string
	Lessons     []domain.Lesson
	LessonCount int
}

// LessonsJSON serializes the lesson list for metadata storage.
func (e CatalogEntry) LessonsJSON() (string, error) {
	data, err := json.Marshal(e.Lessons)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lessons: %w", err)
	}
	return string(data), nil
}

// ParseLessons is the inverse of LessonsJSON.
func ParseLessons(raw string) ([]domain.Lesson, error) {
	if raw == "" {
		return nil, nil
	}
	var lessons []domain.Lesson
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		return nil, fmt.Errorf("failed to parse lessons metadata: %w", err)
	}
	return lessons, nil
}

// SearchResult is one ranked content hit. Distance follows L2 semantics:
// smaller is closer.
type SearchResult struct {
	Content      string
	CourseTitle  string
	LessonNumber int
	Distance     float32
}

// Store is the dual-collection index. Implementations must validate
// limits via ValidateLimit before issuing engine queries, and must treat
// an empty filtered result set as a normal empty slice, not an error.
type Store interface {
	// UpsertCourse adds a catalog entry. Ingestion is idempotent by
	// title: an existing title makes this a no-op.
	UpsertCourse(ctx context.Context, entry CatalogEntry) error

	// UpsertChunks embeds and appends content documents.
	UpsertChunks(ctx context.Context, chunks []domain.CourseChunk) error

	// Search runs a semantic nearest-neighbor query over the content
	// collection. courseTitle and lessonNumber are optional exact-match
	// filters combined conjunctively; pass "" / nil to skip them.
	Search(ctx context.Context, query string, courseTitle string, lessonNumber *int, limit int) ([]SearchResult, error)

	// NearestCourse returns the closest catalog title to name and its
	// distance, for threshold-gated name resolution.
	NearestCourse(ctx context.Context, name string) (string, float32, error)

	ListCourseTitles(ctx context.Context) ([]string, error)
	GetCourseMetadata(ctx context.Context, title string) (*CatalogEntry, error)
	CountChunks(ctx context.Context) (int, error)
}

// ValidateLimit enforces the positive-limit invariant at the store
// boundary.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	return nil
}
