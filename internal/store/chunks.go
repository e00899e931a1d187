package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/blackcard-ai/concierge/internal/domain"
)

// ReplaceChunks deletes existing chunks for source and inserts the given ones
// in a single transaction so re-ingesting a document is atomic.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, source string, chunks []domain.DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to rollback chunk replace", "source", source, "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", source, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (source, content, tags_json, embedding, chunk_index)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, chunk := range chunks {
		tags := chunk.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = encodeVector(chunk.Embedding)
		}
		index := chunk.ChunkIndex
		if index == 0 {
			index = i
		}
		if _, err := stmt.ExecContext(ctx, source, chunk.Content, string(tagsJSON), embedding, index); err != nil {
			return fmt.Errorf("insert chunk %d for %s: %w", i, source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace chunks: %w", err)
	}
	return nil
}

// ListChunks returns chunks sharing at least one of tags, or all chunks when
// tags is empty.
func (s *SQLiteStore) ListChunks(ctx context.Context, tags []string) ([]domain.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, content, tags_json, embedding, chunk_index
		FROM document_chunks ORDER BY source, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer closeRows(rows, "document_chunks")

	var chunks []domain.DocumentChunk
	for rows.Next() {
		var chunk domain.DocumentChunk
		var tagsJSON string
		var embedding []byte
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Content, &tagsJSON, &embedding, &chunk.ChunkIndex); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &chunk.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for chunk %d: %w", chunk.ID, err)
		}
		if len(tags) > 0 && !sharesTag(chunk.Tags, tags) {
			continue
		}
		chunk.Embedding = decodeVector(embedding)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

func sharesTag(have, want []string) bool {
	for _, t := range want {
		if slices.Contains(have, t) {
			return true
		}
	}
	return false
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
