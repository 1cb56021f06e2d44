package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finsightlab/finsight/internal/models"
)

// ErrNotFound indicates the requested comparison does not exist.
var ErrNotFound = errors.New("comparison not found")

// Store persists comparisons and their chat history.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := dbPath + "?_loc=Local"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS comparisons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol_a TEXT NOT NULL,
	symbol_b TEXT NOT NULL,
	snapshot_a TEXT NOT NULL,
	snapshot_b TEXT NOT NULL,
	analysis TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	comparison_id INTEGER NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_comparison ON chat_messages(comparison_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveComparison inserts a comparison and returns its id.
func (s *Store) SaveComparison(cmp *models.Comparison) (int64, error) {
	snapA, err := json.Marshal(cmp.SnapshotA)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	snapB, err := json.Marshal(cmp.SnapshotB)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	symbolA, symbolB := cmp.Symbols()
	createdAt := cmp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.Exec(
		`INSERT INTO comparisons (symbol_a, symbol_b, snapshot_a, snapshot_b, analysis, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		symbolA, symbolB, string(snapA), string(snapB), cmp.Analysis, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert comparison: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("comparison id: %w", err)
	}
	cmp.ID = id
	cmp.CreatedAt = createdAt
	return id, nil
}

// GetComparison loads a comparison and its chat history.
func (s *Store) GetComparison(id int64) (*models.Comparison, error) {
	row := s.db.QueryRow(
		`SELECT snapshot_a, snapshot_b, analysis, created_at FROM comparisons WHERE id = ?`, id)

	var snapA, snapB, analysis string
	var createdAt time.Time
	if err := row.Scan(&snapA, &snapB, &analysis, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load comparison %d: %w", id, err)
	}

	cmp := &models.Comparison{ID: id, Analysis: analysis, CreatedAt: createdAt}
	if err := json.Unmarshal([]byte(snapA), &cmp.SnapshotA); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(snapB), &cmp.SnapshotB); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	messages, err := s.loadMessages(id)
	if err != nil {
		return nil, err
	}
	cmp.Messages = messages
	return cmp, nil
}

func (s *Store) loadMessages(comparisonID int64) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT role, content, created_at FROM chat_messages WHERE comparison_id = ? ORDER BY id`,
		comparisonID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// AppendMessage adds a chat turn to a stored comparison.
func (s *Store) AppendMessage(comparisonID int64, msg models.ChatMessage) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO chat_messages (comparison_id, role, content, created_at)
		 SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM comparisons WHERE id = ?)`,
		comparisonID, msg.Role, msg.Content, createdAt, comparisonID,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListComparisons returns the most recent comparisons, newest first,
// without chat history.
func (s *Store) ListComparisons(limit int) ([]*models.Comparison, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, snapshot_a, snapshot_b, analysis, created_at
		 FROM comparisons ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	defer rows.Close()

	var out []*models.Comparison
	for rows.Next() {
		var snapA, snapB string
		cmp := &models.Comparison{}
		if err := rows.Scan(&cmp.ID, &snapA, &snapB, &cmp.Analysis, &cmp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		if err := json.Unmarshal([]byte(snapA), &cmp.SnapshotA); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(snapB), &cmp.SnapshotB); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, cmp)
	}
	return out, rows.Err()
}
