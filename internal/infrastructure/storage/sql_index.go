package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"BookPublisher/internal/ports"
)

const indexTable = "archive_chapters"

// SQLIndex persists archive documents and their embeddings in SQLite or Postgres
// and ranks them by normalized cosine distance, (1 - cos) / 2, which lies in [0, 1].
type SQLIndex struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.VectorIndex = (*SQLIndex)(nil)

// OpenSQLIndex opens the database for driver "sqlite" (dsn is a file path) or
// "postgres" (dsn is a connection URL) and creates the table if needed.
func OpenSQLIndex(ctx context.Context, driver, dsn string) (*SQLIndex, error) {
	var (
		sqlDriver   string
		placeholder sq.PlaceholderFormat
		ddl         string
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		sqlDriver, placeholder, ddl = "sqlite", sq.Question, sqliteSchema
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create index dir: %w", err)
			}
		}
	case "postgres", "postgresql":
		sqlDriver, placeholder, ddl = "postgres", sq.Dollar, postgresSchema
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sqlDriver, err)
	}
	if sqlDriver == "sqlite" {
		// a single connection keeps :memory: databases alive and serializes writers
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}

	return &SQLIndex{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS archive_chapters (
    chapter_id TEXT PRIMARY KEY,
    document   TEXT NOT NULL,
    metadata   TEXT NOT NULL,
    embedding  BLOB NOT NULL,
    updated_at TEXT NOT NULL
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS archive_chapters (
    chapter_id TEXT PRIMARY KEY,
    document   TEXT NOT NULL,
    metadata   TEXT NOT NULL,
    embedding  BYTEA NOT NULL,
    updated_at TEXT NOT NULL
)`

// Close releases the database handle.
func (s *SQLIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts the document or replaces the one with the same id.
func (s *SQLIndex) Upsert(ctx context.Context, doc ports.IndexDocument) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("upsert: empty document id")
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("upsert %s: empty embedding", doc.ID)
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query, args, err := s.builder.
		Insert(indexTable).
		Columns("chapter_id", "document", "metadata", "embedding", "updated_at").
		Values(doc.ID, doc.Text, string(meta), encodeVector(doc.Embedding), time.Now().UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT (chapter_id) DO UPDATE
              SET document = EXCLUDED.document,
                  metadata = EXCLUDED.metadata,
                  embedding = EXCLUDED.embedding,
                  updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	return nil
}

// Query returns the topK documents closest to embedding, nearest first; ties break by id.
func (s *SQLIndex) Query(ctx context.Context, embedding []float32, topK int) ([]ports.IndexMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	query, args, err := s.builder.
		Select("chapter_id", "document", "metadata", "embedding").
		From(indexTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var matches []ports.IndexMatch
	for rows.Next() {
		match, vec, err := scanMatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		if len(vec) != len(embedding) {
			_ = rows.Close()
			return nil, fmt.Errorf("document %s has %d dimensions, query has %d", match.ID, len(vec), len(embedding))
		}
		match.Distance = cosineDistance(embedding, vec)
		matches = append(matches, match)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Get looks a document up by id.
func (s *SQLIndex) Get(ctx context.Context, id string) (ports.IndexMatch, bool, error) {
	query, args, err := s.builder.
		Select("chapter_id", "document", "metadata", "embedding").
		From(indexTable).
		Where(sq.Eq{"chapter_id": id}).
		ToSql()
	if err != nil {
		return ports.IndexMatch{}, false, fmt.Errorf("build get: %w", err)
	}

	match, _, err := scanMatch(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ports.IndexMatch{}, false, nil
	}
	if err != nil {
		return ports.IndexMatch{}, false, err
	}
	return match, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (ports.IndexMatch, []float32, error) {
	var (
		match ports.IndexMatch
		meta  string
		blob  []byte
	)
	if err := row.Scan(&match.ID, &match.Text, &meta, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return match, nil, err
		}
		return match, nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &match.Metadata); err != nil {
		return match, nil, fmt.Errorf("decode metadata for %s: %w", match.ID, err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return match, nil, fmt.Errorf("decode embedding for %s: %w", match.ID, err)
	}
	return match, vec, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	cos = math.Max(-1, math.Min(1, cos))
	return (1 - cos) / 2
}
