// Package chunker splits lesson text into overlapping, sentence-aligned
// chunks sized for embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/pkg/logger"
)

const (
	DefaultMaxChars = 800
	DefaultOverlap  = 100
)

type Splitter struct {
	maxChars int
	overlap  int
}

func New(maxChars, overlap int) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Splitter{maxChars: maxChars, overlap: overlap}
}

// Split chunks one lesson's text. The first chunk is prefixed with a
// course/lesson label so its embedding carries provenance even without
// metadata; later chunks rely on stored metadata instead. Empty text
// yields no chunks.
func (s *Splitter) Split(courseTitle string, lessonNumber int, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := s.sentences(text)
	chunks := s.assemble(sentences)
	if len(chunks) == 0 {
		return nil
	}

	chunks[0] = fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, lessonNumber, chunks[0])
	return chunks
}

// ChunkCourse chunks every lesson of a course. Chunk indices continue
// across lesson boundaries so they are unique within the course.
func (s *Splitter) ChunkCourse(course domain.Course, lessonTexts map[int]string) []domain.CourseChunk {
	var out []domain.CourseChunk
	idx := 0
	for _, lesson := range course.Lessons {
		for _, content := range s.Split(course.Title, lesson.Number, lessonTexts[lesson.Number]) {
			out = append(out, domain.CourseChunk{
				CourseTitle:  course.Title,
				LessonNumber: lesson.Number,
				ChunkIndex:   idx,
				Content:      content,
			})
			idx++
		}
	}
	return out
}

// sentences segments text with prose, which handles common abbreviations
// (Dr., Inc., decimal numbers) that a naive period split would break on.
// Segmentation failure degrades to fixed character windows.
func (s *Splitter) sentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("sentence segmentation failed, falling back to character windows", zap.Error(err))
		return s.charWindows(text)
	}

	var out []string
	for _, sent := range doc.Sentences() {
		t := strings.TrimSpace(sent.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return s.charWindows(text)
	}
	return out
}

// assemble greedily packs sentences into chunks of at most maxChars,
// seeding each new chunk with the tail of the previous one. A sentence
// longer than the budget is kept whole in its own chunk.
func (s *Splitter) assemble(sentences []string) []string {
	var chunks []string
	var cur []string
	curLen := 0

	flush := func() string {
		text := strings.Join(cur, " ")
		chunks = append(chunks, text)
		cur = cur[:0]
		curLen = 0
		return text
	}

	for _, sent := range sentences {
		if curLen > 0 && curLen+1+len(sent) > s.maxChars {
			prev := flush()
			if seed := s.overlapSeed(prev); seed != "" && len(seed)+1+len(sent) <= s.maxChars {
				cur = append(cur, seed)
				curLen = len(seed)
			}
		}
		cur = append(cur, sent)
		if curLen > 0 {
			curLen++
		}
		curLen += len(sent)
	}
	if len(cur) > 0 {
		flush()
	}

	return chunks
}

// overlapSeed returns a suffix of prev, roughly overlap characters long,
// aligned to a word boundary so no token is cut mid-way.
func (s *Splitter) overlapSeed(prev string) string {
	if s.overlap <= 0 {
		return ""
	}
	if len(prev) <= s.overlap {
		return prev
	}
	tail := prev[len(prev)-s.overlap:]
	if i := strings.IndexByte(tail, ' '); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}
	return tail
}

// charWindows is the degraded split for text prose cannot segment:
// fixed-size windows stepping by maxChars minus overlap.
func (s *Splitter) charWindows(text string) []string {
	step := s.maxChars - s.overlap
	if step <= 0 {
		step = s.maxChars
	}

	var out []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += step {
		end := start + s.maxChars
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
