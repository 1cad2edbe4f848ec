package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

const httpCache Collection = "http_cache"

// CachedResponse is a stored HTTP response kept for offline replay.
type CachedResponse struct {
	CacheName string
	URL       string
	Status    int
	Header    http.Header
	Body      []byte
	StoredAt  time.Time
}

// PutResponse stores or replaces a cached response.
func (s *Store) PutResponse(ctx context.Context, r CachedResponse) error {
	header, err := json.Marshal(r.Header)
	if err != nil {
		return wrapErr("cache_put", httpCache, err)
	}
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now()
	}
	return run(s, "cache_put", httpCache, func(db *DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO http_cache (cache_name, url, status, header, body, stored_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(cache_name, url) DO UPDATE SET
				status = excluded.status,
				header = excluded.header,
				body = excluded.body,
				stored_at = excluded.stored_at`,
			r.CacheName, r.URL, r.Status, string(header), r.Body, r.StoredAt.UnixMilli())
		return struct{}{}, err
	}).Err(ctx)
}

// MatchResponse returns the cached response for url in the named cache, or
// nil when there is none.
func (s *Store) MatchResponse(ctx context.Context, cacheName, url string) (*CachedResponse, error) {
	return run(s, "cache_match", httpCache, func(db *DB) (*CachedResponse, error) {
		var (
			r        = CachedResponse{CacheName: cacheName, URL: url}
			header   string
			storedAt int64
		)
		err := db.QueryRowContext(ctx,
			`SELECT status, header, body, stored_at FROM http_cache WHERE cache_name = ? AND url = ?`,
			cacheName, url).Scan(&r.Status, &header, &r.Body, &storedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(header), &r.Header); err != nil {
			return nil, err
		}
		r.StoredAt = time.UnixMilli(storedAt)
		return &r, nil
	}).Await(ctx)
}

// CacheNames lists the names of every response cache present.
func (s *Store) CacheNames(ctx context.Context) ([]string, error) {
	return run(s, "cache_names", httpCache, func(db *DB) ([]string, error) {
		rows, err := db.QueryContext(ctx, `SELECT DISTINCT cache_name FROM http_cache ORDER BY cache_name`)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var names []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				return nil, err
			}
			names = append(names, n)
		}
		return names, rows.Err()
	}).Await(ctx)
}

// DeleteCache drops every response stored under name.
func (s *Store) DeleteCache(ctx context.Context, name string) error {
	return run(s, "cache_delete", httpCache, func(db *DB) (struct{}, error) {
		_, err := db.ExecContext(ctx, `DELETE FROM http_cache WHERE cache_name = ?`, name)
		return struct{}{}, err
	}).Err(ctx)
}
