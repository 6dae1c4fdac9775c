package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	scherrors "github.com/scholaq/scholaq/internal/errors"
	"github.com/scholaq/scholaq/internal/store"
)

// paperRecord is one line of an import file: a paper with its chunks.
// Chunks may carry precomputed embeddings; chunks without one are
// embedded during import.
type paperRecord struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Authors []string      `json:"authors"`
	Year    int           `json:"year"`
	Journal string        `json:"journal"`
	DOI     string        `json:"doi"`
	Chunks  []chunkRecord `json:"chunks"`
}

type chunkRecord struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Section    string    `json:"section"`
	PageNumber int       `json:"page_number"`
	HasTable   bool      `json:"has_table"`
	Embedding  []float32 `json:"embedding"`
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <papers.jsonl>",
		Short: "Import pre-chunked papers into the library",
		Long: `Import reads a JSON Lines file with one paper per line and indexes
its chunks for keyword and semantic search. Chunks without a precomputed
embedding are embedded with the configured provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return scherrors.Wrapf(err, scherrors.ErrCodeInvalidInput, "cannot open import file %s", path)
	}
	defer f.Close()

	records, err := readPaperRecords(f)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return scherrors.New(scherrors.ErrCodeInvalidInput, "import file contains no papers")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	totalChunks := 0
	for _, rec := range records {
		n, err := importPaper(ctx, a, rec)
		if err != nil {
			return err
		}
		totalChunks += n
		cmd.Printf("imported %s (%d chunks)\n", rec.ID, n)
	}

	if err := a.store.Save(); err != nil {
		return err
	}

	slog.Info("import complete",
		"papers", len(records),
		"chunks", totalChunks,
		"duration", time.Since(start))
	cmd.Printf("done: %d papers, %d chunks in %s\n",
		len(records), totalChunks, time.Since(start).Round(time.Millisecond))
	return nil
}

// readPaperRecords parses a JSON Lines stream, skipping blank lines.
func readPaperRecords(r io.Reader) ([]paperRecord, error) {
	var records []paperRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec paperRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, scherrors.Wrapf(err, scherrors.ErrCodeInvalidInput, "invalid paper record on line %d", lineNo)
		}
		if rec.ID == "" {
			return nil, scherrors.Newf(scherrors.ErrCodeInvalidInput, "paper record on line %d has no id", lineNo)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, scherrors.Wrap(err, scherrors.ErrCodeInvalidInput, "read import file")
	}
	return records, nil
}

// importPaper indexes one paper, embedding the chunks that arrived
// without a vector.
func importPaper(ctx context.Context, a *app, rec paperRecord) (int, error) {
	paper := &store.Paper{
		ID:      rec.ID,
		Title:   rec.Title,
		Authors: rec.Authors,
		Year:    rec.Year,
		Journal: rec.Journal,
		DOI:     rec.DOI,
	}

	chunks := make([]*store.Chunk, len(rec.Chunks))
	embeddings := make(map[string][]float32, len(rec.Chunks))
	var missingIDs []string
	var missingTexts []string

	for i, cr := range rec.Chunks {
		id := cr.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", rec.ID, i)
		}
		chunks[i] = &store.Chunk{
			ID:         id,
			PaperID:    rec.ID,
			Text:       cr.Text,
			ChunkIndex: i,
			Section:    store.ParseSectionType(cr.Section),
			PageNumber: cr.PageNumber,
			HasTable:   cr.HasTable,
		}
		if len(cr.Embedding) > 0 {
			embeddings[id] = cr.Embedding
		} else if cr.Text != "" {
			missingIDs = append(missingIDs, id)
			missingTexts = append(missingTexts, cr.Text)
		}
	}

	if len(missingTexts) > 0 {
		vectors, err := a.embedder.EmbedBatch(ctx, missingTexts)
		if err != nil {
			return 0, scherrors.Wrapf(err, scherrors.ErrCodeEmbedFailed, "embed chunks for paper %s", rec.ID)
		}
		for i, id := range missingIDs {
			embeddings[id] = vectors[i]
		}
	}

	if err := a.store.ImportPaper(ctx, paper, chunks, embeddings, a.embedder.ModelName()); err != nil {
		return 0, err
	}
	return len(chunks), nil
}
