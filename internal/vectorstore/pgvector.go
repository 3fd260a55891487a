package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type PGVectorConfig struct {
	DSN   string
	Table string
}

// PGVectorStore searches a Postgres table with a pgvector embedding column.
// Expected columns: title, source_url, doc_path, header_path (text[]),
// content (text), embedding (vector).
type PGVectorStore struct {
	db    *sqlx.DB
	table string
}

func NewPGVectorStore(cfg PGVectorConfig) (*PGVectorStore, error) {
	table := cfg.Table
	if table == "" {
		table = "doc_chunks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid chunk table name: %s", table)
	}
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PGVectorStore{db: db, table: table}, nil
}

type pgChunkRow struct {
	Title      string         `db:"title"`
	SourceURL  string         `db:"source_url"`
	DocPath    string         `db:"doc_path"`
	HeaderPath pq.StringArray `db:"header_path"`
	Content    string         `db:"content"`
	Score      float32        `db:"score"`
}

func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	// Cosine distance ordering; score reported as cosine similarity.
	query := fmt.Sprintf(`
		SELECT title, source_url, doc_path, header_path, content,
		       1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table)
	var rows []pgChunkRow
	if err := s.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vector), topK); err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, Chunk{
			Title:      row.Title,
			SourceURL:  row.SourceURL,
			DocPath:    row.DocPath,
			HeaderPath: row.HeaderPath,
			Text:       row.Content,
			Score:      row.Score,
		})
	}
	return chunks, nil
}

func (s *PGVectorStore) Close() error {
	return s.db.Close()
}
