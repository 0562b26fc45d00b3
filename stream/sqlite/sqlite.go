// Package sqlite persists memory streams in a single-file SQLite database
// using the pure Go modernc.org/sqlite driver. Embeddings are stored as
// little-endian float32 blobs; source ids as a JSON array. Save writes a full
// snapshot transactionally, Load restores an in-memory stream with round-trip
// fidelity of every record field.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/stream"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id               INTEGER PRIMARY KEY,
	text             TEXT    NOT NULL,
	embedding        BLOB    NOT NULL,
	kind             TEXT    NOT NULL,
	importance       INTEGER NOT NULL,
	created_at       TEXT    NOT NULL,
	last_accessed_at TEXT    NOT NULL,
	source_ids       TEXT    NOT NULL DEFAULT '[]'
);
`

// Store wraps a SQLite database holding one stream snapshot.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored snapshot with the current contents of src.
func (s *Store) Save(ctx context.Context, src core.Stream) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, text, embedding, kind, importance, created_at, last_accessed_at, source_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range src.All() {
		sources, err := json.Marshal(rec.SourceIDs)
		if err != nil {
			return fmt.Errorf("marshal source ids for record %d: %w", rec.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID,
			rec.Text,
			encodeEmbedding(rec.Embedding),
			string(rec.Kind),
			rec.Importance,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			rec.LastAccessedAt.UTC().Format(time.RFC3339Nano),
			string(sources),
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Load restores the stored snapshot as an in-memory stream. Options are
// forwarded to the stream constructor (e.g. to attach a vector index).
func (s *Store) Load(ctx context.Context, optFns ...func(o *stream.Options)) (*stream.InMemoryStream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, kind, importance, created_at, last_accessed_at, source_ids
		FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*core.Record
	for rows.Next() {
		var (
			rec        core.Record
			kind       string
			blob       []byte
			createdAt  string
			accessedAt string
			sources    string
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &blob, &kind, &rec.Importance, &createdAt, &accessedAt, &sources); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = core.Kind(kind)
		if rec.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("record %d: parse created_at: %w", rec.ID, err)
		}
		if rec.LastAccessedAt, err = time.Parse(time.RFC3339Nano, accessedAt); err != nil {
			return nil, fmt.Errorf("record %d: parse last_accessed_at: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &rec.SourceIDs); err != nil {
			return nil, fmt.Errorf("record %d: parse source_ids: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return stream.Restore(records, optFns...)
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian float32 bytes into a vector.
func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
