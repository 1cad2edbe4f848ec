// Package offlinecache is a network-first HTTP transport that keeps copies
// of successful responses and replays them when the network is gone.
package offlinecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/store"
	"go.uber.org/zap"
)

const (
	// HeaderCacheStatus marks a response replayed from the cache.
	HeaderCacheStatus = "X-Sightings-Cache"
	CacheHit          = "hit"

	DefaultName = "app_cache_1"
)

// DefaultPrecache is the allow-list fetched at install time.
var DefaultPrecache = []string{"/if_online", "/sights"}

var ErrNoCachedEntry = errors.New("no cached entry")

// lookupTimeout bounds a cache lookup after the network failed. The request
// context may already be cancelled by then, for example by a client timeout.
const lookupTimeout = 2 * time.Second

// Cache is the response storage used by the worker.
type Cache interface {
	PutResponse(ctx context.Context, r store.CachedResponse) error
	MatchResponse(ctx context.Context, cacheName, url string) (*store.CachedResponse, error)
	CacheNames(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, name string) error
}

type Config struct {
	Name     string
	BaseURL  string
	Precache []string
}

type Worker struct {
	cfg    Config
	cache  Cache
	next   http.RoundTripper
	logger *zap.Logger
}

// New builds a worker over next (nil means http.DefaultTransport).
func New(cfg Config, cache Cache, next http.RoundTripper, logger *zap.Logger) *Worker {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Precache == nil {
		cfg.Precache = DefaultPrecache
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{cfg: cfg, cache: cache, next: next, logger: logger}
}

func (w *Worker) Name() string { return w.cfg.Name }

// Install fetches every allow-listed path and stores the successful ones.
// Failures are collected; a partial install still caches what it could.
func (w *Worker) Install(ctx context.Context) error {
	var errs []error
	for _, p := range w.cfg.Precache {
		if err := w.Add(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Add fetches path from the network and stores the response.
func (w *Worker) Add(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("precache %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("precache %s: %w", path, err)
	}
	return w.store(ctx, req.URL.String(), resp, body)
}

// Activate deletes every cache whose name is not this worker's.
func (w *Worker) Activate(ctx context.Context) error {
	names, err := w.cache.CacheNames(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, n := range names {
		if n == w.cfg.Name {
			continue
		}
		if err := w.cache.DeleteCache(ctx, n); err != nil {
			errs = append(errs, err)
			continue
		}
		w.logger.Info("deleted stale response cache", zap.String("cache", n))
	}
	return errors.Join(errs...)
}

// RoundTrip tries the network first. Successful GETs are copied into the
// cache. When the network fails a GET is answered from the cache, exact URL
// first then without its query; with no entry the request fails with
// ErrNoCachedEntry.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, netErr := w.next.RoundTrip(req)
	if netErr == nil {
		if req.Method == http.MethodGet && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return w.keep(req, resp)
		}
		return resp, nil
	}
	if req.Method != http.MethodGet {
		return nil, netErr
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), lookupTimeout)
	defer cancel()
	for _, key := range candidates(req) {
		hit, err := w.cache.MatchResponse(ctx, w.cfg.Name, key)
		if err != nil {
			w.logger.Warn("response cache lookup failed", zap.String("url", key), zap.Error(err))
			break
		}
		if hit != nil {
			w.logger.Debug("serving cached response", zap.String("url", key))
			return replay(req, hit), nil
		}
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrNoCachedEntry, req.URL, netErr)
}

func (w *Worker) keep(req *http.Request, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err := w.store(req.Context(), req.URL.String(), resp, body); err != nil {
		w.logger.Warn("response cache write failed", zap.String("url", req.URL.String()), zap.Error(err))
	}
	return resp, nil
}

func (w *Worker) store(ctx context.Context, url string, resp *http.Response, body []byte) error {
	return w.cache.PutResponse(ctx, store.CachedResponse{
		CacheName: w.cfg.Name,
		URL:       url,
		Status:    resp.StatusCode,
		Header:    resp.Header.Clone(),
		Body:      body,
	})
}

func candidates(req *http.Request) []string {
	full := req.URL.String()
	if req.URL.RawQuery == "" {
		return []string{full}
	}
	u := *req.URL
	u.RawQuery = ""
	return []string{full, u.String()}
}

func replay(req *http.Request, c *store.CachedResponse) *http.Response {
	h := c.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(HeaderCacheStatus, CacheHit)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.Status, http.StatusText(c.Status)),
		StatusCode:    c.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}
