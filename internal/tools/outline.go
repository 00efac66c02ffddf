package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/course-rag/backend/internal/vector"
)

// OutlineTool returns a course's title, link, instructor and full lesson
// list from catalog metadata.
type OutlineTool struct {
	store    vector.Store
	resolver NameResolver
}

func NewOutlineTool(store vector.Store, resolver NameResolver) *OutlineTool {
	return &OutlineTool{store: store, resolver: resolver}
}

func (t *OutlineTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name:        "get_course_outline",
			Description: "Get the complete outline of a course including course title, course link, and all lessons with their numbers and titles",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"course_name": {
						Type:        jsonschema.String,
						Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
				},
				Required: []string{"course_name"},
			},
		},
	}
}

type outlineArgs struct {
	CourseName string `json:"course_name"`
}

func (t *OutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a outlineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid outline arguments: %w", err)
	}
	if a.CourseName == "" {
		return "", fmt.Errorf("missing required argument: course_name")
	}

	title, ok := t.resolver.Resolve(ctx, a.CourseName)
	if !ok {
		return fmt.Sprintf("No course found matching '%s'", a.CourseName), nil
	}

	entry, err := t.store.GetCourseMetadata(ctx, title)
	if err != nil {
		return "", fmt.Errorf("failed to load course outline: %w", err)
	}
	if entry == nil {
		return fmt.Sprintf("Course metadata not found for '%s'", title), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", entry.Title)
	if entry.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", entry.Link)
	}
	if entry.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", entry.Instructor)
	}

	fmt.Fprintf(&b, "\nLessons (%d total):\n", len(entry.Lessons))
	for _, lesson := range entry.Lessons {
		fmt.Fprintf(&b, "  Lesson %d: %s\n", lesson.Number, lesson.Title)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
