package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lectern/internal/db"
)

const scoreField = "__vector_score"

// SearchKNN runs FT.SEARCH with a KNN clause, nearest passage first.
// Cosine distances are returned as similarities in [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := knnArgs(q)
	if err != nil {
		return nil, err
	}

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	switch {
	case isRedisErr(err, "no such index"), isRedisErr(err, "unknown index name"):
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	case err != nil:
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseKNNReply(raw)
}

// knnArgs renders q as FT.SEARCH arguments (index name first).
func knnArgs(q *db.KNNQuery) ([]string, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: query vector is empty")
	case q.K <= 0:
		return nil, fmt.Errorf("knn: k must be positive, got %d", q.K)
	}

	field := q.VectorField
	if field == "" {
		field = db.DefaultVectorField
	}
	filter := q.Filter
	if filter == "" {
		filter = "*"
	}

	params := []string{"BLOB", rueidis.VectorString32(q.Vector)}
	clause := fmt.Sprintf("KNN %d @%s $BLOB", q.K, field)
	if q.EFRuntime > 0 {
		clause += " EF_RUNTIME $EF"
		params = append(params, "EF", strconv.Itoa(q.EFRuntime))
	}

	args := []string{q.IndexName, fmt.Sprintf("%s=>[%s AS %s]", filter, clause, scoreField)}
	if n := len(q.ReturnFields); n > 0 {
		args = append(args, "RETURN", strconv.Itoa(n+1))
		args = append(args, q.ReturnFields...)
		args = append(args, scoreField)
	}
	args = append(args,
		"SORTBY", scoreField, "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", strconv.Itoa(len(params)),
	)
	args = append(args, params...)
	return append(args, "DIALECT", "2"), nil
}

// parseKNNReply reads the RESP2 shape [total, key1, [f, v, ...], key2, ...].
// Entries that fail to decode are skipped.
func parseKNNReply(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("knn reply total: %w", err)
	}

	res := &db.SearchResult{Total: int(total), Entries: make([]db.SearchEntry, 0, (len(raw)-1)/2)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].AsStrMap()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: fields}
		if dist, ok := fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(dist, 64); err == nil {
				entry.Score = distanceToSimilarity(d)
			}
			delete(fields, scoreField)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// distanceToSimilarity maps cosine distance [0,2] to a similarity clamped to [0,1].
func distanceToSimilarity(d float64) float64 {
	return min(1, max(0, 1-d))
}
