package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchRecords returns the limit nearest records in a collection to
// queryVector, filtered by the compiled where condition.
func searchRecords(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int, where string, whereArgs []interface{}) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}
	// Use SQL-side distance when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchRecordsOptimized(ctx, q, collectionID, queryVector, limit, where, whereArgs)
	}
	return searchRecordsFallback(ctx, q, collectionID, queryVector, limit, where, whereArgs)
}

// searchRecordsOptimized computes distances with vec_distance_cosine and
// lets SQLite sort and limit.
func searchRecordsOptimized(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int, where string, whereArgs []interface{}) ([]Hit, error) {
	query := `
		SELECT r.id, r.path, r.document, r.start_line, r.end_line,
		       vec_distance_cosine(r.vector, ?) AS distance
		FROM records r
		WHERE r.collection_id = ?
	`
	args := []interface{}{serializeVector(queryVector), collectionID}
	if where != "" {
		query += " AND (" + where + ")"
		args = append(args, whereArgs...)
	}
	query += " ORDER BY distance ASC, r.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			rec      Record
			distance float64
		)
		if err := scanRecord(rows, &rec, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, Hit{ID: rec.ID, Distance: distance, Document: rec.Document, Metadata: rec.Metadata})
	}
	return hits, rows.Err()
}

// searchRecordsFallback loads candidate vectors and ranks them in Go. Used
// by purego builds.
func searchRecordsFallback(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int, where string, whereArgs []interface{}) ([]Hit, error) {
	query := `
		SELECT r.id, r.path, r.document, r.start_line, r.end_line, r.vector
		FROM records r
		WHERE r.collection_id = ?
	`
	args := []interface{}{collectionID}
	if where != "" {
		query += " AND (" + where + ")"
		args = append(args, whereArgs...)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeDistances(rows, queryVector)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	if limit > len(candidates) {
		limit = len(candidates)
	}
	hits := make([]Hit, limit)
	for i := 0; i < limit; i++ {
		hits[i] = candidates[i].hit
	}
	return hits, nil
}

// computeDistances scans rows and computes cosine distance to queryVector.
func computeDistances(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var rec Record
		var blob []byte
		if err := scanRecord(rows, &rec, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			return nil, fmt.Errorf("%w: record %s has %d, query has %d",
				ErrDimensionMismatch, rec.ID, len(vector), len(queryVector))
		}

		candidates = append(candidates, candidate{hit: Hit{
			ID:       rec.ID,
			Distance: 1 - cosineSimilarity(queryVector, vector),
			Document: rec.Document,
			Metadata: rec.Metadata,
		}})
	}

	return candidates, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate is a hit awaiting ranking
type candidate struct {
	hit Hit
}

// sortCandidates orders candidates nearest first; ties break on id so
// results are stable across runs.
func sortCandidates(candidates []candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].hit.Distance != candidates[j].hit.Distance {
			return candidates[i].hit.Distance < candidates[j].hit.Distance
		}
		return candidates[i].hit.ID < candidates[j].hit.ID
	})
}
