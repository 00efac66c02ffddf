// Package ingestion parses raw course documents into (Course, ordered
// lesson texts) tuples for chunking and indexing.
package ingestion

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/course-rag/backend/internal/domain"
)

// CourseDocument is a parsed course: its metadata plus the raw text
// body of each lesson, keyed by lesson number.
type CourseDocument struct {
	Course      domain.Course
	LessonTexts map[int]string
}

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// ParseFile reads and parses one course document. Plain text and HTML
// are supported; HTML is stripped to text first.
func ParseFile(path string) (*CourseDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read course document: %w", err)
	}

	content := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
	case ".html", ".htm":
		content, err = stripHTML(content)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported course document type: %s", filepath.Ext(path))
	}

	fallbackTitle := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(fallbackTitle, content)
}

// Parse reads the course document format: header lines ("Course Title:",
// "Course Link:", "Course Instructor:") followed by lesson sections
// introduced by "Lesson N: title" markers, each optionally followed by a
// "Lesson Link:" line. Text without any lesson marker becomes lesson 0.
func Parse(fallbackTitle, content string) (*CourseDocument, error) {
	doc := &CourseDocument{LessonTexts: make(map[int]string)}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	inBody := false
	var current *domain.Lesson
	var body strings.Builder

	closeLesson := func() {
		if current == nil {
			return
		}
		doc.Course.Lessons = append(doc.Course.Lessons, *current)
		doc.LessonTexts[current.Number] = strings.TrimSpace(body.String())
		body.Reset()
		current = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			closeLesson()
			number, _ := strconv.Atoi(m[1])
			current = &domain.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			inBody = true
			continue
		}

		if !inBody {
			switch {
			case strings.HasPrefix(trimmed, "Course Title:"):
				doc.Course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
				continue
			case strings.HasPrefix(trimmed, "Course Link:"):
				doc.Course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
				continue
			case strings.HasPrefix(trimmed, "Course Instructor:"):
				doc.Course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
				continue
			case trimmed == "":
				continue
			}
			// Body text started without a lesson marker.
			inBody = true
			current = &domain.Lesson{Number: 0}
		}

		if current != nil && current.Link == "" && body.Len() == 0 &&
			strings.HasPrefix(trimmed, "Lesson Link:") {
			current.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
			continue
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan course document: %w", err)
	}
	closeLesson()

	if doc.Course.Title == "" {
		doc.Course.Title = fallbackTitle
	}
	if doc.Course.Title == "" {
		return nil, fmt.Errorf("course document has no title")
	}

	sort.SliceStable(doc.Course.Lessons, func(i, j int) bool {
		return doc.Course.Lessons[i].Number < doc.Course.Lessons[j].Number
	})

	return doc, nil
}

// stripHTML reduces an HTML course page to its visible text.
func stripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.Join(lines, "\n"), nil
}
