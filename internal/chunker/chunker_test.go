package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-rag/backend/internal/domain"
)

func TestSplitEmptyLesson(t *testing.T) {
	s := New(200, 50)
	assert.Nil(t, s.Split("Testing Fundamentals", 0, ""))
	assert.Nil(t, s.Split("Testing Fundamentals", 0, "   \n\t "))
}

func TestSplitShortLessonYieldsSingleChunk(t *testing.T) {
	s := New(500, 100)
	chunks := s.Split("Testing Fundamentals", 2, "Unit tests verify one behavior at a time.")

	require.Len(t, chunks, 1)
	assert.Equal(t,
		"Course Testing Fundamentals Lesson 2 content: Unit tests verify one behavior at a time.",
		chunks[0])
}

func TestSplitFirstChunkOnlyIsPrefixed(t *testing.T) {
	s := New(120, 30)
	text := manySentences(12)
	chunks := s.Split("Testing Fundamentals", 1, text)

	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[0], "Course Testing Fundamentals Lesson 1 content: "))
	for _, c := range chunks[1:] {
		assert.NotContains(t, c, "Lesson 1 content:")
	}
}

func TestSplitRespectsBudget(t *testing.T) {
	const maxChars = 150
	s := New(maxChars, 40)
	chunks := s.Split("Budgets", 0, manySentences(20))
	require.NotEmpty(t, chunks)

	prefix := "Course Budgets Lesson 0 content: "
	for i, c := range chunks {
		if i == 0 {
			c = strings.TrimPrefix(c, prefix)
		}
		assert.LessOrEqual(t, len(c), maxChars, "chunk %d over budget: %q", i, c)
	}
}

func TestSplitAdjacentChunksOverlap(t *testing.T) {
	s := New(120, 40)
	chunks := s.Split("Overlaps", 0, manySentences(15))
	require.Greater(t, len(chunks), 1)

	prev := strings.TrimPrefix(chunks[0], "Course Overlaps Lesson 0 content: ")
	for i := 1; i < len(chunks); i++ {
		// The head of each chunk is seeded from the tail of the one
		// before it.
		head := chunks[i]
		if cut := strings.IndexByte(head, '.'); cut >= 0 {
			head = head[:cut+1]
		}
		assert.True(t, strings.HasSuffix(prev, head) || strings.Contains(prev, head),
			"chunk %d head %q not found in tail of previous chunk %q", i, head, prev)
		prev = chunks[i]
	}
}

func TestSplitDoesNotBreakOnAbbreviations(t *testing.T) {
	text := "Dr. Smith founded Acme Inc. in 1998. The course fee is 12.50 dollars for members. " +
		"Prof. Jones teaches the advanced track every spring term. " +
		"Students rate the material 4.8 out of 5 on average each year."
	s := New(90, 20)
	chunks := s.Split("Abbrev", 3, text)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		trimmed := strings.TrimSpace(c)
		assert.False(t, strings.HasSuffix(trimmed, "Dr."), "chunk ends mid-abbreviation: %q", c)
		assert.False(t, strings.HasSuffix(trimmed, "Inc."), "chunk ends mid-abbreviation: %q", c)
		assert.False(t, strings.HasSuffix(trimmed, "Prof."), "chunk ends mid-abbreviation: %q", c)
		assert.False(t, strings.HasSuffix(trimmed, "12."), "chunk splits a decimal: %q", c)
	}
}

func TestSplitKeepsOversizedSentenceWhole(t *testing.T) {
	sentence := "This single sentence keeps going " + strings.Repeat("and going ", 40) + "until it ends."
	s := New(100, 20)
	chunks := s.Split("Oversize", 0, sentence)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "until it ends.")
}

func TestChunkCourseIndexContinuesAcrossLessons(t *testing.T) {
	course := domain.Course{
		Title: "Testing Fundamentals",
		Lessons: []domain.Lesson{
			{Number: 0, Title: "Basics"},
			{Number: 1, Title: "Advanced"},
			{Number: 3, Title: "Automation"},
		},
	}
	texts := map[int]string{
		0: manySentences(8),
		1: manySentences(8),
		3: manySentences(8),
	}

	s := New(120, 30)
	chunks := s.ChunkCourse(course, texts)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "Testing Fundamentals", c.CourseTitle)
	}

	// Each lesson's first chunk carries the lesson label.
	seen := map[int]bool{}
	for _, c := range chunks {
		if !seen[c.LessonNumber] {
			assert.Contains(t, c.Content,
				fmt.Sprintf("Lesson %d content:", c.LessonNumber))
			seen[c.LessonNumber] = true
		}
	}
	assert.Len(t, seen, 3)
}

func TestChunkCourseEmptyLessonYieldsNoChunks(t *testing.T) {
	course := domain.Course{
		Title:   "Sparse",
		Lessons: []domain.Lesson{{Number: 0, Title: "Empty"}, {Number: 1, Title: "Full"}},
	}
	texts := map[int]string{1: "One short lesson body."}

	s := New(200, 50)
	chunks := s.ChunkCourse(course, texts)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].LessonNumber)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func manySentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about testing practices in detail. ", i)
	}
	return strings.TrimSpace(b.String())
}
