package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// schemaVersion is the current metadata schema version.
const schemaVersion = 1

// MetadataStore persists papers, chunks and embeddings in SQLite.
type MetadataStore struct {
	db   *sql.DB
	path string
}

// NewMetadataStore opens (or creates) the metadata database at path.
// An empty path opens an in-memory database for tests.
func NewMetadataStore(path string) (*MetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "create data directory")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "open metadata database")
	}

	// Single connection: modernc.org/sqlite serializes writes anyway and
	// this keeps in-memory databases from fragmenting across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA statements for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "set pragma")
		}
	}

	s := &MetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS papers (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		authors     TEXT NOT NULL DEFAULT '[]',
		year        INTEGER NOT NULL DEFAULT 0,
		journal     TEXT NOT NULL DEFAULT '',
		doi         TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		imported_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		paper_id     TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
		text         TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		section_type TEXT NOT NULL DEFAULT 'other',
		page_number  INTEGER NOT NULL DEFAULT 0,
		has_table    INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_paper ON chunks(paper_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		model    TEXT NOT NULL,
		vector   BLOB NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "initialize schema")
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	if err != nil {
		return scherrors.Wrap(err, scherrors.ErrCodeStoreOpen, "record schema version")
	}
	return nil
}

// SavePaper inserts or replaces a paper.
func (s *MetadataStore) SavePaper(ctx context.Context, p *Paper) error {
	authors, err := json.Marshal(p.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	if p.ImportedAt.IsZero() {
		p.ImportedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO papers (id, title, authors, year, journal, doi, chunk_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, string(authors), p.Year, p.Journal, p.DOI, p.ChunkCount, p.ImportedAt)
	return err
}

// GetPaper fetches a paper by ID.
func (s *MetadataStore) GetPaper(ctx context.Context, id string) (*Paper, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, authors, year, journal, doi, chunk_count, imported_at
		FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, scherrors.Newf(scherrors.ErrCodePaperNotFound, "paper %s not found", id)
	}
	return p, err
}

// ListPapers returns all papers ordered by import time, newest first.
func (s *MetadataStore) ListPapers(ctx context.Context) ([]*Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, authors, year, journal, doi, chunk_count, imported_at
		FROM papers ORDER BY imported_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var papers []*Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// DeletePaper removes a paper; chunks and embeddings cascade.
func (s *MetadataStore) DeletePaper(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return scherrors.Newf(scherrors.ErrCodePaperNotFound, "paper %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*Paper, error) {
	var p Paper
	var authorsJSON string
	if err := row.Scan(&p.ID, &p.Title, &authorsJSON, &p.Year, &p.Journal, &p.DOI, &p.ChunkCount, &p.ImportedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
		return nil, fmt.Errorf("unmarshal authors for paper %s: %w", p.ID, err)
	}
	return &p, nil
}

// SaveChunks inserts or replaces chunks in a single transaction.
func (s *MetadataStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, paper_id, text, chunk_index, section_type, page_number, has_table, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		section := c.Section
		if section == "" {
			section = SectionOther
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.PaperID, c.Text, c.ChunkIndex,
			string(section), c.PageNumber, boolToInt(c.HasTable), c.CreatedAt); err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk fetches a single chunk by ID.
func (s *MetadataStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, scherrors.Newf(scherrors.ErrCodeChunkNotFound, "chunk %s not found", id)
	}
	return chunks[0], nil
}

// GetChunks batch-fetches chunks by ID. Missing IDs are silently skipped;
// the result preserves the requested order.
func (s *MetadataStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, paper_id, text, chunk_index, section_type, page_number, has_table, created_at
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		var c Chunk
		var section string
		var hasTable int
		if err := rows.Scan(&c.ID, &c.PaperID, &c.Text, &c.ChunkIndex, &section, &c.PageNumber, &hasTable, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Section = SectionType(section)
		c.HasTable = hasTable != 0
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// CountChunks returns the total number of chunks.
func (s *MetadataStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// SaveEmbeddings stores embedding vectors for chunks.
func (s *MetadataStore) SaveEmbeddings(ctx context.Context, chunkIDs []string, vectors [][]float32, model string) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(chunkIDs), len(vectors))
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO embeddings (chunk_id, model, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id, model, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("save embedding for chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// AllEmbeddings returns every stored embedding keyed by chunk ID.
// Used to rebuild the vector index when its snapshot is missing.
func (s *MetadataStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		result[id] = decodeVector(blob)
	}
	return result, rows.Err()
}

// EmbeddingStats returns how many chunks have and lack embeddings.
func (s *MetadataStore) EmbeddingStats(ctx context.Context) (with, without int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM embeddings),
			(SELECT COUNT(*) FROM chunks WHERE id NOT IN (SELECT chunk_id FROM embeddings))
	`).Scan(&with, &without)
	return with, without, err
}

// Close closes the database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
