package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/vector"
)

// tableEmbedder maps known texts to fixed vectors so distances in tests
// are fully deterministic. Unknown texts embed to the zero vector.
type tableEmbedder struct {
	vectors map[string][]float32
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func testEmbedder() *tableEmbedder {
	return &tableEmbedder{vectors: map[string][]float32{
		"Intro to Go":             {1, 0, 0},
		"Distributed Systems":     {0, 1, 0},
		"goroutines and channels": {1, 0.1, 0},
		"consensus protocols":     {0, 1, 0.1},
		"raft leader election":    {0, 0.9, 0.2},
		"how do goroutines work":  {1, 0, 0},
	}}
}

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := New(testEmbedder())
	ctx := context.Background()

	require.NoError(t, s.UpsertCourse(ctx, vector.CatalogEntry{Title: "Intro to Go", Instructor: "A"}))
	require.NoError(t, s.UpsertCourse(ctx, vector.CatalogEntry{Title: "Distributed Systems", Instructor: "B"}))

	require.NoError(t, s.UpsertChunks(ctx, []domain.CourseChunk{
		{CourseTitle: "Intro to Go", LessonNumber: 1, ChunkIndex: 0, Content: "goroutines and channels"},
		{CourseTitle: "Distributed Systems", LessonNumber: 1, ChunkIndex: 0, Content: "consensus protocols"},
		{CourseTitle: "Distributed Systems", LessonNumber: 2, ChunkIndex: 1, Content: "raft leader election"},
	}))
	return s
}

func TestUpsertCourseIsIdempotent(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	err := s.UpsertCourse(ctx, vector.CatalogEntry{Title: "Intro to Go", Instructor: "someone else"})
	require.NoError(t, err)

	titles, err := s.ListCourseTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro to Go", "Distributed Systems"}, titles)

	meta, err := s.GetCourseMetadata(ctx, "Intro to Go")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "A", meta.Instructor, "first write wins")
}

func TestSearchRanksByDistance(t *testing.T) {
	s := seedStore(t)

	results, err := s.Search(context.Background(), "how do goroutines work", "", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "goroutines and channels", results[0].Content)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestSearchFiltersAreConjunctive(t *testing.T) {
	s := seedStore(t)
	lesson := 2

	results, err := s.Search(context.Background(), "how do goroutines work", "Distributed Systems", &lesson, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "raft leader election", results[0].Content)
	assert.Equal(t, 2, results[0].LessonNumber)
}

func TestSearchCourseFilterOnly(t *testing.T) {
	s := seedStore(t)

	results, err := s.Search(context.Background(), "how do goroutines work", "Intro to Go", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Intro to Go", results[0].CourseTitle)
}

func TestSearchRejectsNonPositiveLimit(t *testing.T) {
	s := seedStore(t)

	_, err := s.Search(context.Background(), "anything", "", nil, 0)
	assert.ErrorIs(t, err, vector.ErrInvalidLimit)

	_, err = s.Search(context.Background(), "anything", "", nil, -3)
	assert.ErrorIs(t, err, vector.ErrInvalidLimit)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	s := seedStore(t)
	lesson := 99

	results, err := s.Search(context.Background(), "anything", "Intro to Go", &lesson, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	s := seedStore(t)

	results, err := s.Search(context.Background(), "raft leader election", "", nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNearestCourse(t *testing.T) {
	s := seedStore(t)

	title, dist, err := s.NearestCourse(context.Background(), "Intro to Go")
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", title)
	assert.InDelta(t, 0.0, float64(dist), 1e-6)
}

func TestNearestCourseEmptyCatalog(t *testing.T) {
	s := New(testEmbedder())

	title, dist, err := s.NearestCourse(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, title)
	assert.Zero(t, dist)
}

func TestCountChunks(t *testing.T) {
	s := seedStore(t)

	n, err := s.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetCourseMetadataUnknownTitle(t *testing.T) {
	s := seedStore(t)

	meta, err := s.GetCourseMetadata(context.Background(), "No Such Course")
	require.NoError(t, err)
	assert.Nil(t, meta)
}
