// Package identify proxies species lookups to a SPARQL endpoint.
package identify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"go.uber.org/zap"
)

const DefaultEndpoint = "https://dbpedia.org/sparql"

const queryTemplate = `PREFIX dbo: <http://dbpedia.org/ontology/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>

SELECT ?bird ?label ?scientificName ?description
WHERE {
    ?bird rdf:type dbo:Bird .
    ?bird rdfs:label ?label .
    ?bird dbo:abstract ?description .
    OPTIONAL { ?bird dbo:binomial ?scientificName . }
    FILTER (LANG(?label) = "en") .
    FILTER (LANG(?description) = "en") .
    FILTER (CONTAINS(lcase(str(?label)), "%s"))
}
LIMIT 1`

// Client runs lookups against a SPARQL endpoint, optionally through a cache.
type Client struct {
	endpoint string
	http     *http.Client
	cache    Cache
	ttl      time.Duration
	logger   *zap.Logger
}

type Option func(*Client)

func WithCache(c Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.ttl = ttl
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

func NewClient(endpoint string, logger *zap.Logger, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// Lookup returns at most one candidate for term. An unknown term yields an
// empty, non-nil slice.
func (c *Client) Lookup(ctx context.Context, term string) ([]sighting.Candidate, error) {
	key := Normalize(term)
	if key == "" {
		return []sighting.Candidate{}, nil
	}

	if c.cache != nil {
		hit, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("lookup cache read failed", zap.String("term", key), zap.Error(err))
		case ok:
			return hit, nil
		}
	}

	out, err := c.query(ctx, key)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, out, c.ttl); err != nil {
			c.logger.Warn("lookup cache write failed", zap.String("term", key), zap.Error(err))
		}
	}
	return out, nil
}

func (c *Client) query(ctx context.Context, term string) ([]sighting.Candidate, error) {
	params := url.Values{}
	params.Set("default-graph-uri", "http://dbpedia.org")
	params.Set("query", fmt.Sprintf(queryTemplate, escapeLiteral(term)))
	params.Set("format", "application/sparql-results+json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sparql endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}

	out := make([]sighting.Candidate, 0, len(sr.Results.Bindings))
	for _, b := range sr.Results.Bindings {
		name := b["scientificName"].Value
		if name == "" {
			name = b["label"].Value
		}
		out = append(out, sighting.Candidate{
			ScientificName: name,
			Description:    b["description"].Value,
			URI:            b["bird"].Value,
		})
	}
	return out, nil
}

// Normalize lowercases and trims a lookup term; it is also the cache key.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
