package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/vector"
)

// NameResolver maps a raw course name to an exact catalog title.
type NameResolver interface {
	Resolve(ctx context.Context, rawName string) (string, bool)
}

// ContentSearchTool searches course content with smart course name
// matching and optional lesson filtering.
type ContentSearchTool struct {
	store      vector.Store
	resolver   NameResolver
	maxResults int

	mu          sync.Mutex
	lastSources []domain.Source
}

func NewContentSearchTool(store vector.Store, resolver NameResolver, maxResults int) *ContentSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &ContentSearchTool{store: store, resolver: resolver, maxResults: maxResults}
}

func (t *ContentSearchTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name:        "search_course_content",
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "What to search for in the course content",
					},
					"course_name": {
						Type:        jsonschema.String,
						Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": {
						Type:        jsonschema.Integer,
						Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func (t *ContentSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid search arguments: %w", err)
	}
	if a.Query == "" {
		return "", fmt.Errorf("missing required argument: query")
	}

	courseTitle := ""
	if a.CourseName != "" {
		resolved, ok := t.resolver.Resolve(ctx, a.CourseName)
		if !ok {
			return fmt.Sprintf("No course found matching '%s'", a.CourseName), nil
		}
		courseTitle = resolved
	}

	results, err := t.store.Search(ctx, a.Query, courseTitle, a.LessonNumber, t.maxResults)
	if err != nil {
		return "", fmt.Errorf("content search failed: %w", err)
	}

	if len(results) == 0 {
		var filter strings.Builder
		if courseTitle != "" {
			fmt.Fprintf(&filter, " in course '%s'", courseTitle)
		}
		if a.LessonNumber != nil {
			fmt.Fprintf(&filter, " in lesson %d", *a.LessonNumber)
		}
		return fmt.Sprintf("No relevant content found%s.", filter.String()), nil
	}

	return t.formatResults(ctx, results), nil
}

// formatResults renders hits with a course/lesson header and records the
// source batch, replacing any batch from a previous query.
func (t *ContentSearchTool) formatResults(ctx context.Context, results []vector.SearchResult) string {
	formatted := make([]string, 0, len(results))
	sources := make([]domain.Source, 0, len(results))
	lessonLinks := t.lessonLinks(ctx, results)

	for _, r := range results {
		header := fmt.Sprintf("[%s - Lesson %d]", r.CourseTitle, r.LessonNumber)
		formatted = append(formatted, header+"\n"+r.Content)

		lesson := r.LessonNumber
		sources = append(sources, domain.Source{
			CourseTitle:  r.CourseTitle,
			LessonNumber: &lesson,
			Link:         lessonLinks[linkKey{r.CourseTitle, r.LessonNumber}],
		})
	}

	t.mu.Lock()
	t.lastSources = sources
	t.mu.Unlock()

	return strings.Join(formatted, "\n\n")
}

type linkKey struct {
	title  string
	lesson int
}

// lessonLinks fetches lesson links from catalog metadata, one lookup per
// distinct course in the result set. Lookup failures just leave the
// link empty.
func (t *ContentSearchTool) lessonLinks(ctx context.Context, results []vector.SearchResult) map[linkKey]string {
	links := make(map[linkKey]string)
	seen := make(map[string]bool)

	for _, r := range results {
		if seen[r.CourseTitle] {
			continue
		}
		seen[r.CourseTitle] = true

		entry, err := t.store.GetCourseMetadata(ctx, r.CourseTitle)
		if err != nil || entry == nil {
			continue
		}
		for _, lesson := range entry.Lessons {
			links[linkKey{r.CourseTitle, lesson.Number}] = lesson.Link
		}
	}
	return links
}

func (t *ContentSearchTool) consumeSources() []domain.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	sources := t.lastSources
	t.lastSources = nil
	return sources
}
