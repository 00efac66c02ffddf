// Package memory is an in-process vector store used in tests and in
// single-node development mode. Search is brute-force L2 over every
// stored vector, which is fine at course-corpus scale.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/vector"
)

type contentDoc struct {
	chunk     domain.CourseChunk
	embedding []float32
}

type catalogDoc struct {
	entry     vector.CatalogEntry
	embedding []float32
}

type Store struct {
	embedder vector.Embedder

	mu      sync.RWMutex
	catalog map[string]catalogDoc
	titles  []string // insertion order
	content []contentDoc
}

func New(embedder vector.Embedder) *Store {
	return &Store{
		embedder: embedder,
		catalog:  make(map[string]catalogDoc),
	}
}

func (s *Store) UpsertCourse(ctx context.Context, entry vector.CatalogEntry) error {
	s.mu.RLock()
	_, exists := s.catalog[entry.Title]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	emb, err := s.embedder.Embed(ctx, entry.Title)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.catalog[entry.Title]; exists {
		return nil
	}
	s.catalog[entry.Title] = catalogDoc{entry: entry, embedding: emb}
	s.titles = append(s.titles, entry.Title)
	return nil
}

func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.content = append(s.content, contentDoc{chunk: c, embedding: embeddings[i]})
	}
	return nil
}

func (s *Store) Search(ctx context.Context, query string, courseTitle string, lessonNumber *int, limit int) ([]vector.SearchResult, error) {
	if err := vector.ValidateLimit(limit); err != nil {
		return nil, err
	}

	queryEmb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]vector.SearchResult, 0, limit)
	for _, doc := range s.content {
		if courseTitle != "" && doc.chunk.CourseTitle != courseTitle {
			continue
		}
		if lessonNumber != nil && doc.chunk.LessonNumber != *lessonNumber {
			continue
		}
		results = append(results, vector.SearchResult{
			Content:      doc.chunk.Content,
			CourseTitle:  doc.chunk.CourseTitle,
			LessonNumber: doc.chunk.LessonNumber,
			Distance:     l2Distance(queryEmb, doc.embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) NearestCourse(ctx context.Context, name string) (string, float32, error) {
	queryEmb, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := ""
	bestDist := float32(math.MaxFloat32)
	for title, doc := range s.catalog {
		d := l2Distance(queryEmb, doc.embedding)
		if d < bestDist {
			best = title
			bestDist = d
		}
	}
	if best == "" {
		return "", 0, nil
	}
	return best, bestDist, nil
}

func (s *Store) ListCourseTitles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.titles))
	copy(out, s.titles)
	return out, nil
}

func (s *Store) GetCourseMetadata(ctx context.Context, title string) (*vector.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.catalog[title]
	if !ok {
		return nil, nil
	}
	entry := doc.entry
	return &entry, nil
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content), nil
}

func l2Distance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
