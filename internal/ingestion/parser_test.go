package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-rag/backend/internal/domain"
)

const sampleCourse = `Course Title: Intro to Go
Course Link: https://example.com/go
Course Instructor: Rob

Lesson 1: Getting Started
Lesson Link: https://example.com/go/1
Go is a compiled language. It has goroutines.

Lesson 2: Channels
Channels connect goroutines. Select multiplexes them.
`

func TestParseHeadersAndLessons(t *testing.T) {
	doc, err := Parse("fallback", sampleCourse)
	require.NoError(t, err)

	assert.Equal(t, "Intro to Go", doc.Course.Title)
	assert.Equal(t, "https://example.com/go", doc.Course.Link)
	assert.Equal(t, "Rob", doc.Course.Instructor)

	require.Len(t, doc.Course.Lessons, 2)
	assert.Equal(t, domain.Lesson{Number: 1, Title: "Getting Started", Link: "https://example.com/go/1"}, doc.Course.Lessons[0])
	assert.Equal(t, domain.Lesson{Number: 2, Title: "Channels"}, doc.Course.Lessons[1])

	assert.Equal(t, "Go is a compiled language. It has goroutines.", doc.LessonTexts[1])
	assert.Equal(t, "Channels connect goroutines. Select multiplexes them.", doc.LessonTexts[2])
}

func TestParseLessonsAreSortedByNumber(t *testing.T) {
	content := `Course Title: Unordered
Lesson 3: Third
Body three.
Lesson 1: First
Body one.
`
	doc, err := Parse("", content)
	require.NoError(t, err)
	require.Len(t, doc.Course.Lessons, 2)
	assert.Equal(t, 1, doc.Course.Lessons[0].Number)
	assert.Equal(t, 3, doc.Course.Lessons[1].Number)
}

func TestParseBodyWithoutLessonMarkerBecomesLessonZero(t *testing.T) {
	content := `Course Title: Flat Course
This course has no lesson markers at all.
Just one body of text.
`
	doc, err := Parse("", content)
	require.NoError(t, err)

	require.Len(t, doc.Course.Lessons, 1)
	assert.Equal(t, 0, doc.Course.Lessons[0].Number)
	assert.Contains(t, doc.LessonTexts[0], "no lesson markers")
	assert.Contains(t, doc.LessonTexts[0], "Just one body of text.")
}

func TestParseFallsBackToFileTitle(t *testing.T) {
	doc, err := Parse("my_course", "Lesson 1: Only\nSome text.\n")
	require.NoError(t, err)
	assert.Equal(t, "my_course", doc.Course.Title)
}

func TestParseNoTitleAnywhereIsAnError(t *testing.T) {
	_, err := Parse("", "Lesson 1: Only\nSome text.\n")
	assert.Error(t, err)
}

func TestParseLessonLinkOnlyRecognizedBeforeBody(t *testing.T) {
	content := `Course Title: Links
Lesson 1: Intro
Some body text first.
Lesson Link: https://example.com/late
`
	doc, err := Parse("", content)
	require.NoError(t, err)

	assert.Empty(t, doc.Course.Lessons[0].Link)
	assert.Contains(t, doc.LessonTexts[1], "Lesson Link: https://example.com/late",
		"a late link line is ordinary body text")
}

func TestParseFilePlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intro_to_go.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleCourse), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", doc.Course.Title)
	require.Len(t, doc.Course.Lessons, 2)
}

func TestParseFileUsesFileNameAsFallbackTitle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "untitled_course.txt")
	require.NoError(t, os.WriteFile(path, []byte("Lesson 1: Only\nSome text.\n"), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "untitled_course", doc.Course.Title)
}

func TestParseFileHTMLIsStrippedToText(t *testing.T) {
	html := `<html><head><style>body { color: red; }</style></head><body>
<script>alert("ignored");</script>
<p>Course Title: Web Basics</p>
<p>Lesson 1: HTML</p>
<p>Elements nest inside each other.</p>
</body></html>`

	dir := t.TempDir()
	path := filepath.Join(dir, "web.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Web Basics", doc.Course.Title)
	require.Len(t, doc.Course.Lessons, 1)
	assert.Equal(t, "HTML", doc.Course.Lessons[0].Title)
	assert.Contains(t, doc.LessonTexts[1], "Elements nest inside each other.")
	assert.NotContains(t, doc.LessonTexts[1], "alert")
	assert.NotContains(t, doc.LessonTexts[1], "color: red")
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.pdf")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0644))

	_, err := ParseFile(path)
	assert.Error(t, err)
}
