package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/storage/models"
	"github.com/course-rag/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("sqlite client initialized", zap.String("path", dbPath))
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingested_documents (
		content_hash TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		course_title TEXT NOT NULL,
		lesson_count INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ingested_title ON ingested_documents(course_title);

	CREATE TABLE IF NOT EXISTS query_log (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		query_text TEXT NOT NULL,
		answer TEXT,
		tool_used INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_session ON query_log(session_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_log(created_at);

	CREATE TABLE IF NOT EXISTS query_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		course_title TEXT NOT NULL,
		lesson_number INTEGER,
		link TEXT,
		FOREIGN KEY (query_id) REFERENCES query_log(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_query ON query_sources(query_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (c *Client) InsertDocument(doc *models.IngestedDocument) error {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO ingested_documents
		 (content_hash, file_name, course_title, lesson_count, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ContentHash, doc.FileName, doc.CourseTitle, doc.LessonCount, doc.ChunkCount,
		doc.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingested document: %w", err)
	}
	return nil
}

func (c *Client) InsertQueryRecord(rec *models.QueryRecord, sources []models.QuerySource) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	toolUsed := 0
	if rec.ToolUsed {
		toolUsed = 1
	}
	_, err = tx.Exec(
		`INSERT INTO query_log (id, session_id, query_text, answer, tool_used, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.QueryText, rec.Answer, toolUsed, rec.LatencyMS,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	for _, src := range sources {
		_, err = tx.Exec(
			`INSERT INTO query_sources (query_id, course_title, lesson_number, link)
			 VALUES (?, ?, ?, ?)`,
			rec.ID, src.CourseTitle, src.LessonNumber, src.Link,
		)
		if err != nil {
			return fmt.Errorf("failed to insert query source: %w", err)
		}
	}

	return tx.Commit()
}

// RecentQueries returns the latest records for one session, newest
// first.
func (c *Client) RecentQueries(sessionID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.Query(
		`SELECT id, session_id, query_text, answer, tool_used, latency_ms, created_at
		 FROM query_log WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []models.QueryRecord
	for rows.Next() {
		var rec models.QueryRecord
		var toolUsed int
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.QueryText, &rec.Answer,
			&toolUsed, &rec.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		rec.ToolUsed = toolUsed != 0
		rec.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
