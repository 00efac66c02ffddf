package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/vector"
)

// stubStore records the last search it received and serves canned
// results and metadata.
type stubStore struct {
	results   []vector.SearchResult
	searchErr error
	metadata  map[string]*vector.CatalogEntry

	searchCalls int
	lastQuery   string
	lastCourse  string
	lastLesson  *int
	lastLimit   int
}

func (s *stubStore) UpsertCourse(context.Context, vector.CatalogEntry) error { return nil }

func (s *stubStore) UpsertChunks(context.Context, []domain.CourseChunk) error { return nil }

func (s *stubStore) NearestCourse(context.Context, string) (string, float32, error) {
	return "", 0, nil
}

func (s *stubStore) ListCourseTitles(context.Context) ([]string, error) { return nil, nil }

func (s *stubStore) CountChunks(context.Context) (int, error) { return 0, nil }

func (s *stubStore) Search(_ context.Context, query, courseTitle string, lessonNumber *int, limit int) ([]vector.SearchResult, error) {
	s.searchCalls++
	s.lastQuery = query
	s.lastCourse = courseTitle
	s.lastLesson = lessonNumber
	s.lastLimit = limit
	return s.results, s.searchErr
}

func (s *stubStore) GetCourseMetadata(_ context.Context, title string) (*vector.CatalogEntry, error) {
	return s.metadata[title], nil
}

// stubResolver resolves names through a fixed table.
type stubResolver struct {
	matches map[string]string
}

func (r *stubResolver) Resolve(_ context.Context, rawName string) (string, bool) {
	title, ok := r.matches[rawName]
	return title, ok
}

func goCourseStore() *stubStore {
	return &stubStore{
		results: []vector.SearchResult{
			{Content: "Goroutines are lightweight threads.", CourseTitle: "Intro to Go", LessonNumber: 1, Distance: 0.2},
			{Content: "Channels connect goroutines.", CourseTitle: "Intro to Go", LessonNumber: 2, Distance: 0.5},
		},
		metadata: map[string]*vector.CatalogEntry{
			"Intro to Go": {
				Title:      "Intro to Go",
				Instructor: "Rob",
				Link:       "https://example.com/go",
				Lessons: []domain.Lesson{
					{Number: 1, Title: "Goroutines", Link: "https://example.com/go/1"},
					{Number: 2, Title: "Channels", Link: "https://example.com/go/2"},
				},
				LessonCount: 2,
			},
		},
	}
}

func TestSearchToolFormatsResultsAndRecordsSources(t *testing.T) {
	store := goCourseStore()
	tool := NewContentSearchTool(store, &stubResolver{matches: map[string]string{"go": "Intro to Go"}}, 5)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"what are goroutines","course_name":"go"}`))
	require.NoError(t, err)

	assert.Contains(t, out, "[Intro to Go - Lesson 1]\nGoroutines are lightweight threads.")
	assert.Contains(t, out, "[Intro to Go - Lesson 2]\nChannels connect goroutines.")
	assert.Equal(t, "Intro to Go", store.lastCourse, "resolved title passed as filter")
	assert.Equal(t, 5, store.lastLimit)

	sources := tool.consumeSources()
	require.Len(t, sources, 2)
	assert.Equal(t, "Intro to Go", sources[0].CourseTitle)
	require.NotNil(t, sources[0].LessonNumber)
	assert.Equal(t, 1, *sources[0].LessonNumber)
	assert.Equal(t, "https://example.com/go/1", sources[0].Link)
	assert.Equal(t, "https://example.com/go/2", sources[1].Link)
}

func TestSearchToolUnresolvableCourseIsTextNotError(t *testing.T) {
	store := goCourseStore()
	tool := NewContentSearchTool(store, &stubResolver{}, 5)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything","course_name":"Basket Weaving"}`))
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Basket Weaving'", out)
	assert.Zero(t, store.searchCalls, "no search should run when resolution fails")
	assert.Empty(t, tool.consumeSources())
}

func TestSearchToolMissingQueryIsRejected(t *testing.T) {
	tool := NewContentSearchTool(goCourseStore(), &stubResolver{}, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"go"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required argument: query")
}

func TestSearchToolInvalidArgumentsAreRejected(t *testing.T) {
	tool := NewContentSearchTool(goCourseStore(), &stubResolver{}, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query": 42`))
	assert.Error(t, err)
}

func TestSearchToolEmptyResultMessageNamesFilters(t *testing.T) {
	store := goCourseStore()
	store.results = nil
	tool := NewContentSearchTool(store, &stubResolver{matches: map[string]string{"go": "Intro to Go"}}, 5)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"monads","course_name":"go","lesson_number":3}`))
	require.NoError(t, err)
	assert.Equal(t, "No relevant content found in course 'Intro to Go' in lesson 3.", out)
	assert.Empty(t, tool.consumeSources())
}

func TestSearchToolPassesLessonFilter(t *testing.T) {
	store := goCourseStore()
	tool := NewContentSearchTool(store, &stubResolver{}, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"channels","lesson_number":2}`))
	require.NoError(t, err)
	require.NotNil(t, store.lastLesson)
	assert.Equal(t, 2, *store.lastLesson)
	assert.Empty(t, store.lastCourse)
}

func TestSearchToolStoreErrorPropagates(t *testing.T) {
	store := goCourseStore()
	store.searchErr = errors.New("index down")
	tool := NewContentSearchTool(store, &stubResolver{}, 5)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`))
	assert.Error(t, err)
}

func TestOutlineToolRendersCatalogMetadata(t *testing.T) {
	store := goCourseStore()
	tool := NewOutlineTool(store, &stubResolver{matches: map[string]string{"go": "Intro to Go"}})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"go"}`))
	require.NoError(t, err)

	assert.Contains(t, out, "Course: Intro to Go")
	assert.Contains(t, out, "Course Link: https://example.com/go")
	assert.Contains(t, out, "Instructor: Rob")
	assert.Contains(t, out, "Lessons (2 total):")
	assert.Contains(t, out, "Lesson 1: Goroutines")
	assert.Contains(t, out, "Lesson 2: Channels")
}

func TestOutlineToolMissingCourseNameIsRejected(t *testing.T) {
	tool := NewOutlineTool(goCourseStore(), &stubResolver{})

	_, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required argument: course_name")
}

func TestOutlineToolUnresolvableCourseIsTextNotError(t *testing.T) {
	tool := NewOutlineTool(goCourseStore(), &stubResolver{})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"Basket Weaving"}`))
	require.NoError(t, err)
	assert.Equal(t, "No course found matching 'Basket Weaving'", out)
}

func TestRegistryDispatchesByName(t *testing.T) {
	store := goCourseStore()
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewContentSearchTool(store, &stubResolver{}, 5)))
	require.NoError(t, reg.Register(NewOutlineTool(store, &stubResolver{matches: map[string]string{"go": "Intro to Go"}})))

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "search_course_content", defs[0].Function.Name)
	assert.Equal(t, "get_course_outline", defs[1].Function.Name)

	out, err := reg.Execute(context.Background(), "get_course_outline", json.RawMessage(`{"course_name":"go"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Course: Intro to Go")
}

func TestRegistryUnknownToolIsTextNotError(t *testing.T) {
	reg := NewRegistry()

	out, err := reg.Execute(context.Background(), "teleport", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "Tool 'teleport' not found", out)
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	store := goCourseStore()
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewContentSearchTool(store, &stubResolver{}, 5)))

	err := reg.Register(NewContentSearchTool(store, &stubResolver{}, 5))
	assert.Error(t, err)
}

func TestRegistryConsumeSourcesReturnsBatchExactlyOnce(t *testing.T) {
	store := goCourseStore()
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewContentSearchTool(store, &stubResolver{}, 5)))

	_, err := reg.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"goroutines"}`))
	require.NoError(t, err)

	first := reg.ConsumeSources()
	require.Len(t, first, 2)
	assert.Nil(t, reg.ConsumeSources(), "second consume must return nothing")
}

func TestRegistryNewBatchReplacesPreviousOne(t *testing.T) {
	store := goCourseStore()
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewContentSearchTool(store, &stubResolver{}, 5)))

	_, err := reg.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"first"}`))
	require.NoError(t, err)

	store.results = store.results[:1]
	_, err = reg.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"second"}`))
	require.NoError(t, err)

	batch := reg.ConsumeSources()
	assert.Len(t, batch, 1, "only the latest batch survives")
}
