package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for history records.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		prompt TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		work_dir TEXT NOT NULL,
		state TEXT NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT -1,
		repo_url TEXT NOT NULL DEFAULT '',
		publish_error TEXT NOT NULL DEFAULT '',
		started_at DATETIME,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		closed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordBuild inserts or replaces the summary of a finished build.
func (s *Store) RecordBuild(b Build) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO builds
		 (id, owner, prompt, model, work_dir, state, exit_code, repo_url, publish_error, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Owner, b.Prompt, b.Model, b.WorkDir, b.State, b.ExitCode,
		b.RepoURL, b.PublishError, nullTime(b.StartedAt), nullTime(b.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// ListBuilds returns the most recent builds, newest first.
func (s *Store) ListBuilds(limit int) ([]Build, error) {
	rows, err := s.db.Query(
		`SELECT id, owner, prompt, model, work_dir, state, exit_code, repo_url, publish_error, started_at, ended_at
		 FROM builds
		 ORDER BY ended_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []Build
	for rows.Next() {
		var b Build
		var started, ended sql.NullTime
		if err := rows.Scan(&b.ID, &b.Owner, &b.Prompt, &b.Model, &b.WorkDir, &b.State, &b.ExitCode,
			&b.RepoURL, &b.PublishError, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.StartedAt = started.Time
		b.EndedAt = ended.Time
		builds = append(builds, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return builds, nil
}

// ArchiveConversation stores a closed conversation with its messages in one
// transaction and returns the new conversation ID.
func (s *Store) ArchiveConversation(c Conversation, messages []Message) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ClosedAt.IsZero() {
		c.ClosedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO conversations (id, user_id, channel_id, outcome, prompt, created_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ChannelID, c.Outcome, c.Prompt, c.CreatedAt, c.ClosedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	for _, m := range messages {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (conversation_id, role, content, timestamp)
			 VALUES (?, ?, ?, ?)`,
			c.ID, m.Role, m.Content, ts,
		); err != nil {
			return "", fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit conversation: %w", err)
	}
	return c.ID, nil
}

// GetConversation retrieves an archived conversation by ID.
// Returns nil, nil when it does not exist.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, channel_id, outcome, prompt, created_at, closed_at
		 FROM conversations WHERE id = ?`,
		id,
	)

	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.ChannelID, &c.Outcome, &c.Prompt, &c.CreatedAt, &c.ClosedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	return &c, nil
}

// GetMessages retrieves all messages for a conversation in order.
func (s *Store) GetMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, timestamp
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return messages, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
