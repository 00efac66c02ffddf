package domain

import "strconv"

// Lesson is a single lesson inside a course. Lessons are ordered by
// Number; numbering is unique within a course but need not be contiguous.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is identified by its title, which acts as the primary key in
// both vector collections.
type Course struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []Lesson
}

// LessonByNumber returns the lesson with the given number, if present.
func (c *Course) LessonByNumber(n int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == n {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseChunk is one retrievable unit of lesson text. ChunkIndex is
// monotonic across lessons within the owning course, so a course's chunk
// indices are globally unique.
type CourseChunk struct {
	CourseTitle  string
	LessonNumber int
	ChunkIndex   int
	Content      string
}

// Source is the provenance record attached to a retrieval result,
// surfaced to the end user alongside the answer.
type Source struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Link         string `json:"link,omitempty"`
}

// Label renders the source the way it is shown to users, e.g.
// "Intro to MCP - Lesson 2".
func (s Source) Label() string {
	if s.LessonNumber == nil {
		return s.CourseTitle
	}
	return s.CourseTitle + " - Lesson " + strconv.Itoa(*s.LessonNumber)
}

// Exchange is one completed (user, assistant) turn in a session.
type Exchange struct {
	UserMessage      string
	AssistantMessage string
}
