// Package milvus implements the dual-collection vector store on a
// Milvus (or Zilliz Cloud) instance.
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/domain"
	"github.com/course-rag/backend/internal/vector"
	"github.com/course-rag/backend/pkg/logger"
)

type Client struct {
	client      client.Client
	embedder    vector.Embedder
	catalogColl string
	contentColl string
	dim         int
}

func NewClient(endpoint, catalogColl, contentColl string, dim int, embedder vector.Embedder) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("catalog_collection", catalogColl),
		zap.String("content_collection", contentColl),
	)

	return &Client{
		client:      c,
		embedder:    embedder,
		catalogColl: catalogColl,
		contentColl: contentColl,
		dim:         dim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollections creates and loads both collections if they do not
// exist yet.
func (m *Client) EnsureCollections(ctx context.Context) error {
	if err := m.ensureCollection(ctx, m.catalogSchema()); err != nil {
		return err
	}
	return m.ensureCollection(ctx, m.contentSchema())
}

func (m *Client) ensureCollection(ctx context.Context, schema *entity.Schema) error {
	has, err := m.client.HasCollection(ctx, schema.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", schema.CollectionName, err)
	}
	if has {
		return nil
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", schema.CollectionName, err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err := m.client.CreateIndex(ctx, schema.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", schema.CollectionName, err)
	}

	if err := m.client.LoadCollection(ctx, schema.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", schema.CollectionName, err)
	}

	logger.Info("collection created and loaded", zap.String("collection", schema.CollectionName))
	return nil
}

func (m *Client) catalogSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: m.catalogColl,
		Description:    "one entry per course, embedded by title for name discovery",
		Fields: []*entity.Field{
			{Name: "title", DataType: entity.FieldTypeVarChar, PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "512"}},
			{Name: "embedding", DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dim)}},
			{Name: "instructor", DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "256"}},
			{Name: "link", DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1024"}},
			{Name: "lessons_json", DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"}},
			{Name: "lesson_count", DataType: entity.FieldTypeInt64},
		},
	}
}

func (m *Client) contentSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: m.contentColl,
		Description:    "lesson text chunks for answer-grounding search",
		Fields: []*entity.Field{
			{Name: "chunk_id", DataType: entity.FieldTypeVarChar, PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"}},
			{Name: "embedding", DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dim)}},
			{Name: "content", DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"}},
			{Name: "course_title", DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"}},
			{Name: "lesson_number", DataType: entity.FieldTypeInt64},
			{Name: "chunk_index", DataType: entity.FieldTypeInt64},
		},
	}
}

func (m *Client) UpsertCourse(ctx context.Context, e vector.CatalogEntry) error {
	existing, err := m.ListCourseTitles(ctx)
	if err != nil {
		return err
	}
	for _, title := range existing {
		if title == e.Title {
			logger.Info("course already indexed, skipping", zap.String("title", e.Title))
			return nil
		}
	}

	emb, err := m.embedder.Embed(ctx, e.Title)
	if err != nil {
		return fmt.Errorf("failed to embed course title: %w", err)
	}

	lessonsJSON, err := e.LessonsJSON()
	if err != nil {
		return err
	}

	_, err = m.client.Insert(
		ctx,
		m.catalogColl,
		"",
		entity.NewColumnVarChar("title", []string{e.Title}),
		entity.NewColumnFloatVector("embedding", m.dim, [][]float32{emb}),
		entity.NewColumnVarChar("instructor", []string{e.Instructor}),
		entity.NewColumnVarChar("link", []string{e.Link}),
		entity.NewColumnVarChar("lessons_json", []string{lessonsJSON}),
		entity.NewColumnInt64("lesson_count", []int64{int64(e.LessonCount)}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert catalog entry: %w", err)
	}

	if err := m.client.Flush(ctx, m.catalogColl, false); err != nil {
		return fmt.Errorf("failed to flush catalog: %w", err)
	}
	return nil
}

func (m *Client) UpsertChunks(ctx context.Context, chunks []domain.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	ids := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	lessons := make([]int64, len(chunks))
	indices := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.New().String()
		contents[i] = c.Content
		titles[i] = c.CourseTitle
		lessons[i] = int64(c.LessonNumber)
		indices[i] = int64(c.ChunkIndex)
	}

	_, err = m.client.Insert(
		ctx,
		m.contentColl,
		"",
		entity.NewColumnVarChar("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", m.dim, embeddings),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("course_title", titles),
		entity.NewColumnInt64("lesson_number", lessons),
		entity.NewColumnInt64("chunk_index", indices),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.contentColl, false); err != nil {
		return fmt.Errorf("failed to flush content: %w", err)
	}

	logger.Info("chunks inserted", zap.Int("count", len(chunks)))
	return nil
}

func (m *Client) Search(ctx context.Context, query string, courseTitle string, lessonNumber *int, limit int) ([]vector.SearchResult, error) {
	if err := vector.ValidateLimit(limit); err != nil {
		return nil, err
	}

	queryEmb, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var conds []string
	if courseTitle != "" {
		conds = append(conds, fmt.Sprintf(`course_title == "%s"`, escapeExpr(courseTitle)))
	}
	if lessonNumber != nil {
		conds = append(conds, fmt.Sprintf("lesson_number == %d", *lessonNumber))
	}
	expr := strings.Join(conds, " && ")

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)
	searchResult, err := m.client.Search(
		ctx,
		m.contentColl,
		[]string{},
		expr,
		[]string{"content", "course_title", "lesson_number"},
		[]entity.Vector{entity.FloatVector(queryEmb)},
		"embedding",
		entity.L2,
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}

	results := make([]vector.SearchResult, 0)
	for _, sr := range searchResult {
		contentCol := sr.Fields.GetColumn("content")
		titleCol := sr.Fields.GetColumn("course_title")
		lessonCol := sr.Fields.GetColumn("lesson_number")

		for i := 0; i < sr.ResultCount; i++ {
			content, _ := contentCol.Get(i)
			title, _ := titleCol.Get(i)
			lesson, _ := lessonCol.Get(i)

			results = append(results, vector.SearchResult{
				Content:      content.(string),
				CourseTitle:  title.(string),
				LessonNumber: int(lesson.(int64)),
				Distance:     sr.Scores[i],
			})
		}
	}

	logger.Debug("content search completed",
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)
	return results, nil
}

func (m *Client) NearestCourse(ctx context.Context, name string) (string, float32, error) {
	emb, err := m.embedder.Embed(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("failed to embed course name: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)
	searchResult, err := m.client.Search(
		ctx,
		m.catalogColl,
		[]string{},
		"",
		[]string{"title"},
		[]entity.Vector{entity.FloatVector(emb)},
		"embedding",
		entity.L2,
		1,
		sp,
	)
	if err != nil {
		return "", 0, fmt.Errorf("failed to search catalog: %w", err)
	}

	for _, sr := range searchResult {
		if sr.ResultCount == 0 {
			continue
		}
		titleCol := sr.Fields.GetColumn("title")
		title, _ := titleCol.Get(0)
		return title.(string), sr.Scores[0], nil
	}
	return "", 0, nil
}

func (m *Client) ListCourseTitles(ctx context.Context) ([]string, error) {
	rs, err := m.client.Query(ctx, m.catalogColl, []string{}, `title != ""`, []string{"title"})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog titles: %w", err)
	}

	var titles []string
	for _, col := range rs {
		if col.Name() != "title" {
			continue
		}
		for i := 0; i < col.Len(); i++ {
			v, err := col.Get(i)
			if err != nil {
				continue
			}
			if title, ok := v.(string); ok {
				titles = append(titles, title)
			}
		}
	}
	return titles, nil
}

func (m *Client) GetCourseMetadata(ctx context.Context, title string) (*vector.CatalogEntry, error) {
	expr := fmt.Sprintf(`title == "%s"`, escapeExpr(title))
	rs, err := m.client.Query(ctx, m.catalogColl, []string{}, expr,
		[]string{"title", "instructor", "link", "lessons_json", "lesson_count"})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entry: %w", err)
	}

	fields := make(map[string]entity.Column, len(rs))
	for _, col := range rs {
		fields[col.Name()] = col
	}
	titleCol, ok := fields["title"]
	if !ok || titleCol.Len() == 0 {
		return nil, nil
	}

	entry := &vector.CatalogEntry{}
	if v, err := titleCol.Get(0); err == nil {
		entry.Title = v.(string)
	}
	if col, ok := fields["instructor"]; ok && col.Len() > 0 {
		if v, err := col.Get(0); err == nil {
			entry.Instructor = v.(string)
		}
	}
	if col, ok := fields["link"]; ok && col.Len() > 0 {
		if v, err := col.Get(0); err == nil {
			entry.Link = v.(string)
		}
	}
	if col, ok := fields["lessons_json"]; ok && col.Len() > 0 {
		if v, err := col.Get(0); err == nil {
			lessons, err := vector.ParseLessons(v.(string))
			if err != nil {
				return nil, err
			}
			entry.Lessons = lessons
		}
	}
	if col, ok := fields["lesson_count"]; ok && col.Len() > 0 {
		if v, err := col.Get(0); err == nil {
			entry.LessonCount = int(v.(int64))
		}
	}
	return entry, nil
}

func (m *Client) CountChunks(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.contentColl)
	if err != nil {
		return 0, fmt.Errorf("failed to get content statistics: %w", err)
	}
	var count int
	fmt.Sscanf(stats["row_count"], "%d", &count)
	return count, nil
}

// escapeExpr escapes double quotes in titles interpolated into boolean
// expressions.
func escapeExpr(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
