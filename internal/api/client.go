// Package api is the field client's view of the server HTTP surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/offlinecache"
	"github.com/matheus3301/sightings/internal/sighting"
)

var (
	ErrNotAuthor        = errors.New("only the author can identify this sighting")
	ErrNotFound         = errors.New("sighting not found")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// StatusError carries a non-success response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusForbidden:
		return ErrNotAuthor
	case http.StatusNotFound:
		return ErrNotFound
	}
	return ErrUnexpectedStatus
}

// Snapshot is the result of fetching the sighting list. Stale is set when
// the response came from the offline cache rather than the network.
type Snapshot struct {
	Sightings []json.RawMessage
	Stale     bool
}

type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for base. rt may be nil for the default
// transport; the field client passes the offline cache worker.
func NewClient(base string, rt http.RoundTripper, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Transport: rt, Timeout: timeout},
	}
}

func (c *Client) BaseURL() string { return c.base }

// Ping probes GET /if_online.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/if_online", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if isCached(resp) {
		return errors.New("server unreachable")
	}
	return expect(resp, http.StatusOK)
}

// FetchSightings returns every sighting the server holds, as raw JSON so
// that fields this client does not know survive the round trip.
func (c *Client) FetchSightings(ctx context.Context) (Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sights", nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return Snapshot{}, err
	}
	var list []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return Snapshot{}, fmt.Errorf("decode sightings: %w", err)
	}
	return Snapshot{Sightings: list, Stale: isCached(resp)}, nil
}

func (c *Client) GetSighting(ctx context.Context, id string) (*sighting.Sighting, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sights/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var s sighting.Sighting
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// BulkInsert posts the pending batch. Only a 201 counts as success.
func (c *Client) BulkInsert(ctx context.Context, list []sighting.Sighting) error {
	resp, err := c.do(ctx, http.MethodPost, "/sights/many", list)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expect(resp, http.StatusCreated)
}

func (c *Client) UpdateIdentification(ctx context.Context, id string, upd sighting.Identification) (*sighting.Sighting, error) {
	resp, err := c.do(ctx, http.MethodPut, "/sights/"+url.PathEscape(id), upd)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var s sighting.Sighting
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Lookup(ctx context.Context, term string) ([]sighting.Candidate, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sights/query/"+url.PathEscape(term), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var out []sighting.Candidate
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

func expect(resp *http.Response, code int) error {
	if resp.StatusCode == code {
		return nil
	}
	se := &StatusError{Method: resp.Request.Method, Path: resp.Request.URL.Path, Code: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && json.Unmarshal(raw, &body) == nil {
		se.Msg = body.Error
	}
	return se
}

func isCached(resp *http.Response) bool {
	return resp.Header.Get(offlinecache.HeaderCacheStatus) == offlinecache.CacheHit
}
