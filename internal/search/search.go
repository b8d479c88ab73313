// Package search implements result discovery backed by the Google Custom
// Search JSON API.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jonathan/deep-search/internal/types"
)

const (
	// DefaultMinInterval spaces out API calls so concurrent jobs stay under
	// the per-second quota.
	DefaultMinInterval = 1100 * time.Millisecond

	// RetryDelay is how long to wait before the single retry after a
	// rate-limit response.
	RetryDelay = 2 * time.Second

	// maxResultsPerRequest is the API's hard cap on the num parameter.
	maxResultsPerRequest = 10
)

// Client discovers web results for research queries. It is safe for
// concurrent use; calls are serialized to respect the API rate limit.
type Client struct {
	svc            *customsearch.Service
	cx             string
	verbose        bool
	preferAcademic bool

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	sleep       func(time.Duration)
}

// NewClient creates a search client. The cx is the programmable search
// engine ID. Extra client options are appended after the API key, so tests
// can redirect the endpoint.
func NewClient(ctx context.Context, apiKey, cx string, verbose bool, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}
	if cx == "" {
		return nil, fmt.Errorf("search engine ID is required")
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	return &Client{
		svc:         svc,
		cx:          cx,
		verbose:     verbose,
		minInterval: DefaultMinInterval,
		sleep:       time.Sleep,
	}, nil
}

// SetPreferAcademic biases result ordering toward academic and institutional
// sources.
func (c *Client) SetPreferAcademic(v bool) { c.preferAcademic = v }

// Discover runs a search query and returns up to count results, deduplicated
// and ordered by source quality. It over-fetches so that filtering still
// leaves count results to hand back.
func (c *Client) Discover(ctx context.Context, query string, count int) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if count < 1 {
		count = types.DefaultResultCount
	}
	if count > maxResultsPerRequest {
		count = maxResultsPerRequest
	}
	fetchCount := count + 3
	if fetchCount > maxResultsPerRequest {
		fetchCount = maxResultsPerRequest
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pace()
	resp, err := c.doSearch(ctx, query, fetchCount)
	if isRateLimited(err) {
		if c.verbose {
			log.Printf("[SEARCH] Rate limited, retrying after %s: %q", RetryDelay, query)
		}
		c.sleep(RetryDelay)
		c.lastRequest = time.Now()
		resp, err = c.doSearch(ctx, query, fetchCount)
	}
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	results := make([]types.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, types.SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			Description: item.Snippet,
		})
	}

	results = FilterResults(results, c.preferAcademic)
	if len(results) > count {
		results = results[:count]
	}

	if c.verbose {
		log.Printf("[SEARCH] %q returned %d results", query, len(results))
	}
	return results, nil
}

// pace waits until minInterval has elapsed since the previous request.
// Caller must hold the mutex.
func (c *Client) pace() {
	if !c.lastRequest.IsZero() {
		if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
			c.sleep(wait)
		}
	}
	c.lastRequest = time.Now()
}

func (c *Client) doSearch(ctx context.Context, query string, count int) (*customsearch.Search, error) {
	return c.svc.Cse.List().
		Context(ctx).
		Cx(c.cx).
		Q(query).
		Num(int64(count)).
		Do()
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
