package store

import (
	scherrors "github.com/scholaq/scholaq/internal/errors"
)

// NewKeywordIndex creates a keyword index for the given backend.
// Supported backends: "bleve" and "sqlite". The path is interpreted per
// backend (directory for Bleve, database file for SQLite); empty path
// means in-memory.
func NewKeywordIndex(backend, path string) (KeywordIndex, error) {
	switch backend {
	case "bleve", "":
		return NewBleveKeywordIndex(path)
	case "sqlite":
		return NewSQLiteKeywordIndex(path)
	default:
		return nil, scherrors.Newf(scherrors.ErrCodeConfigInvalid,
			"unknown keyword backend %q (supported: bleve, sqlite)", backend)
	}
}
