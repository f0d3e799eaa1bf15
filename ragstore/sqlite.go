package ragstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a flat-table, brute-force-cosine-similarity VectorStore.
// There's no ANN index; every search scans every row. For the document
// volumes this system deals with (a handful of TEE specification PDFs,
// chunked at ~1000 characters) that's thousands of rows, not millions — a
// full scan costs single-digit milliseconds and an index would be
// premature machinery for the corpus size this points at.
type SQLiteStore struct {
	db    *sql.DB
	embed EmbedFunc
}

// NewSQLiteStore opens (creating if necessary) a sqlite-backed store at
// path. Pass "" for an in-memory store, useful in tests.
func NewSQLiteStore(path string, embed EmbedFunc) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if embed == nil {
		embed = DefaultEmbedder
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ragstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ragstore: migrate schema: %w", err)
	}
	return &SQLiteStore{db: db, embed: embed}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	tag       TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '{}',
	embedding TEXT NOT NULL
);
`

// Close releases the underlying sqlite connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) BuildIndex(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ragstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, text, tag, metadata, embedding) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, tag=excluded.tag,
			metadata=excluded.metadata, embedding=excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("ragstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := json.Marshal(Flatten(c.Metadata))
		if err != nil {
			return fmt.Errorf("ragstore: marshal metadata for %s: %w", c.ID, err)
		}
		embJSON, err := json.Marshal(s.embed(c.Text))
		if err != nil {
			return fmt.Errorf("ragstore: marshal embedding for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, string(c.Tag), string(metaJSON), string(embJSON)); err != nil {
			return fmt.Errorf("ragstore: insert %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query string, k int, tagFilter ChunkTag) ([]Chunk, error) {
	rows, err := s.queryAll(ctx, tagFilter)
	if err != nil {
		return nil, err
	}

	queryVec := s.embed(query)
	type scored struct {
		chunk Chunk
		score float64
	}
	results := make([]scored, 0, len(rows))
	for _, r := range rows {
		results = append(results, scored{chunk: r.chunk, score: cosineSimilarity(queryVec, r.embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if k > len(results) {
		k = len(results)
	}
	out := make([]Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = results[i].chunk
	}
	return out, nil
}

func (s *SQLiteStore) SearchByAPI(ctx context.Context, apiName string, k int) ([]Chunk, error) {
	rows, err := s.queryAll(ctx, ChunkAPIDefinition)
	if err != nil {
		return nil, err
	}

	var matches []Chunk
	needle := strings.ToLower(apiName)
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.chunk.Text), needle) {
			matches = append(matches, r.chunk)
		}
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

type row struct {
	chunk     Chunk
	embedding []float64
}

func (s *SQLiteStore) queryAll(ctx context.Context, tagFilter ChunkTag) ([]row, error) {
	query := `SELECT id, text, tag, metadata, embedding FROM chunks`
	args := []any{}
	if tagFilter != "" {
		query += ` WHERE tag = ?`
		args = append(args, string(tagFilter))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ragstore: query chunks: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var (
			id, text, tag, metaJSON, embJSON string
		)
		if err := rows.Scan(&id, &text, &tag, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("ragstore: scan row: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			meta = nil
		}
		var emb []float64
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
			emb = nil
		}
		out = append(out, row{
			chunk: Chunk{ID: id, Text: text, Tag: ChunkTag(tag), Metadata: meta},
			embedding: emb,
		})
	}
	return out, rows.Err()
}
