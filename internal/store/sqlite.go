package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/edu-agent/internal/model/chat"
)

// SQLiteRepository stores conversations in a SQLite database. Messages live in their own
// table with an ordinal column that preserves insertion order.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and applies the schema.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Printf("[store] sqlite repository at %s", path)
	return r, nil
}

func (r *SQLiteRepository) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			id TEXT NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (conversation_id, ordinal)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Save replaces the conversation and its message set in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, conv chat.Conversation) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		conv.ID, conv.Title, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (conversation_id, ordinal, id, sender, text, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range conv.Messages {
		if _, err = stmt.ExecContext(ctx, conv.ID, i, msg.ID, string(msg.Sender), msg.Text, formatTime(msg.Timestamp)); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("querying conversation: %w", err)
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender, text, timestamp FROM messages
		WHERE conversation_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []chat.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return chat.Conversation{}, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

func (r *SQLiteRepository) List(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, created_at, updated_at FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}

	var out []chat.Conversation
	index := make(map[string]int)
	for rows.Next() {
		var conv chat.Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conv.CreatedAt = parseTime(createdAt)
		conv.UpdatedAt = parseTime(updatedAt)
		conv.Messages = []chat.Message{}
		index[conv.ID] = len(out)
		out = append(out, conv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, id, sender, text, timestamp FROM messages
		ORDER BY conversation_id, ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var convID, id, sender, text, ts string
		if err := msgRows.Scan(&convID, &id, &sender, &text, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		i, ok := index[convID]
		if !ok {
			continue
		}
		out[i].Messages = append(out[i].Messages, chat.Message{
			ID: id, Sender: chat.Sender(sender), Text: text, Timestamp: parseTime(ts),
		})
	}
	return out, msgRows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var id, sender, text, ts string
	if err := row.Scan(&id, &sender, &text, &ts); err != nil {
		return chat.Message{}, fmt.Errorf("scanning message: %w", err)
	}
	return chat.Message{ID: id, Sender: chat.Sender(sender), Text: text, Timestamp: parseTime(ts)}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
