// Package bookmark persists product bookmarks created from completed chat
// exchanges. The store backs the session controller's bookmark collaborator
// with a local SQLite database.
package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tradeatlas/tradechat-go/internal/domain"
)

// Bookmark is a persisted bookmark row.
type Bookmark struct {
	ID        string
	HSCode    string
	Category  string
	CreatedAt time.Time
}

// Store is a SQLite-backed bookmark store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the bookmark database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY,
			hs_code TEXT NOT NULL,
			category TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookmarks_hs_code ON bookmarks(hs_code)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	return nil
}

// CreateBookmark records the candidate. Re-bookmarking an HS code already
// present is treated as success and refreshes its category.
func (s *Store) CreateBookmark(ctx context.Context, candidate domain.BookmarkCandidate) error {
	if candidate.HSCode == "" {
		return fmt.Errorf("bookmark candidate has no HS code")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate bookmark id: %w", err)
	}

	query := `INSERT INTO bookmarks (id, hs_code, category, created_at)
	          VALUES (?, ?, ?, ?)
	          ON CONFLICT(hs_code) DO UPDATE SET category = excluded.category`

	_, err = s.db.ExecContext(ctx, query,
		"bm_"+id.String(), candidate.HSCode, candidate.Category, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create bookmark: %w", err)
	}

	return nil
}

// Get returns the bookmark for an HS code.
func (s *Store) Get(ctx context.Context, hsCode string) (*Bookmark, error) {
	query := `SELECT id, hs_code, category, created_at
	          FROM bookmarks WHERE hs_code = ?`

	var bm Bookmark
	err := s.db.QueryRowContext(ctx, query, hsCode).Scan(
		&bm.ID, &bm.HSCode, &bm.Category, &bm.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bookmark %s not found", hsCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	return &bm, nil
}

// List returns all bookmarks, most recent first.
func (s *Store) List(ctx context.Context) ([]*Bookmark, error) {
	query := `SELECT id, hs_code, category, created_at
	          FROM bookmarks ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*Bookmark
	for rows.Next() {
		var bm Bookmark
		if err := rows.Scan(&bm.ID, &bm.HSCode, &bm.Category, &bm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, &bm)
	}

	return bookmarks, rows.Err()
}

// Delete removes the bookmark for an HS code.
func (s *Store) Delete(ctx context.Context, hsCode string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE hs_code = ?`, hsCode)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("bookmark %s not found", hsCode)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
