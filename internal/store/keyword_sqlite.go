package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// SQLiteKeywordIndex implements KeywordIndex using SQLite FTS5.
// Paper IDs live in an UNINDEXED column so scoping becomes a plain
// WHERE filter combined with the MATCH clause.
type SQLiteKeywordIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ KeywordIndex = (*SQLiteKeywordIndex)(nil)

var ftsTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewSQLiteKeywordIndex opens or creates an FTS5 index at path.
// An empty path creates an in-memory index for tests.
func NewSQLiteKeywordIndex(path string) (*SQLiteKeywordIndex, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "create index directory")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "open keyword index")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "set pragma")
		}
	}

	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
		chunk_id UNINDEXED,
		paper_id UNINDEXED,
		text,
		tokenize='unicode61'
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "initialize FTS5 schema")
	}

	return &SQLiteKeywordIndex{db: db, path: path}, nil
}

// Index adds or replaces chunks. FTS5 virtual tables have no REPLACE,
// so existing rows are deleted first.
func (s *SQLiteKeywordIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM chunk_fts WHERE chunk_id = ?`)
	if err != nil {
		return err
	}
	defer func() { _ = deleteStmt.Close() }()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_fts(chunk_id, paper_id, text) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = insertStmt.Close() }()

	for _, c := range chunks {
		if _, err := deleteStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("delete existing chunk %s: %w", c.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, c.ID, c.PaperID, c.Text); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns chunks matching query within the given papers.
// FTS5 bm25() returns negative scores where lower is better; they are
// negated so higher is better, matching the Bleve backend.
func (s *SQLiteKeywordIndex) Search(ctx context.Context, queryStr string, paperIDs []string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	if limit <= 0 {
		return []*KeywordResult{}, nil
	}
	matchExpr := sanitizeFTSQuery(queryStr)
	if matchExpr == "" {
		return []*KeywordResult{}, nil
	}

	sqlQuery := `
		SELECT chunk_id, bm25(chunk_fts) AS score
		FROM chunk_fts
		WHERE text MATCH ?`
	args := []any{matchExpr}

	if len(paperIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paperIDs)), ",")
		sqlQuery += fmt.Sprintf(" AND paper_id IN (%s)", placeholders)
		for _, id := range paperIDs {
			args = append(args, id)
		}
	}
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// FTS5 rejects some query syntax; treat as no matches.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []*KeywordResult{}, nil
		}
		return nil, scherrors.Wrap(err, scherrors.ErrCodeSearchFailed, "keyword search failed")
	}
	defer func() { _ = rows.Close() }()

	var results []*KeywordResult
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		results = append(results, &KeywordResult{ChunkID: id, Score: -score})
	}
	return results, rows.Err()
}

// sanitizeFTSQuery reduces free text to a space-joined list of quoted
// terms, which FTS5 treats as an AND query. This prevents user input
// from being parsed as FTS5 operators.
func sanitizeFTSQuery(queryStr string) string {
	tokens := ftsTokenRegex.FindAllString(queryStr, -1)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " ")
}

// Delete removes chunks by ID.
func (s *SQLiteKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunk_fts WHERE chunk_id IN (%s)", placeholders), args...)
	return err
}

// Count returns the number of indexed chunks.
func (s *SQLiteKeywordIndex) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, scherrors.New(scherrors.ErrCodeStoreOpen, "keyword index is closed")
	}

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunk_fts`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteKeywordIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
