package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/deep-search/internal/types"
)

// fakeDiscoverer is a deterministic Discoverer for tests.
type fakeDiscoverer struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string, count int) ([]types.SearchResult, error)
}

func (f *fakeDiscoverer) Discover(_ context.Context, query string, count int) ([]types.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(query, count)
	}
	return resultsFor(query, 2), nil
}

func (f *fakeDiscoverer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// resultsFor builds n search results whose URLs encode the query.
func resultsFor(query string, n int) []types.SearchResult {
	results := make([]types.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, types.SearchResult{
			Title:       fmt.Sprintf("%s result %d", query, i+1),
			URL:         fmt.Sprintf("https://example.com/%s/%d", query, i+1),
			Description: "test result",
		})
	}
	return results
}

// fakeExtractor is a deterministic Extractor for tests.
type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	fn    func(urls []string, goals []string) (map[string]string, error)
}

func (f *fakeExtractor) Extract(_ context.Context, urls []string, goals []string) (map[string]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(urls, goals)
	}
	answers := make(map[string]string, len(goals))
	for i, goal := range goals {
		answers[types.GoalKey(i)] = "answer to " + goal
	}
	return answers, nil
}

// fakeDeriver is a deterministic QueryDeriver that records the prior
// findings it was called with.
type fakeDeriver struct {
	mu       sync.Mutex
	findings [][]string
	fn       func(topic string, priorFindings []string, batchSize int) ([]types.QueryConfig, error)
}

func (f *fakeDeriver) DeriveQueries(_ context.Context, topic string, priorFindings []string, batchSize int) ([]types.QueryConfig, error) {
	f.mu.Lock()
	f.findings = append(f.findings, append([]string(nil), priorFindings...))
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(topic, priorFindings, batchSize)
	}
	return []types.QueryConfig{{Query: topic, Goals: []string{"What is known about " + topic + "?"}}}, nil
}

func (f *fakeDeriver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.findings)
}

// fakeSynthesizer is a deterministic ReportSynthesizer.
type fakeSynthesizer struct {
	mu       sync.Mutex
	findings []string
	fn       func(topic string, findings []string) (*types.ResearchResults, error)
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, topic string, findings []string) (*types.ResearchResults, error) {
	f.mu.Lock()
	f.findings = append([]string(nil), findings...)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(topic, findings)
	}
	return &types.ResearchResults{
		MainReport:   "report on " + topic,
		KeyLearnings: findings,
	}, nil
}

// testSettings returns valid settings for engine tests.
func testSettings(depth int) types.ResearchSettings {
	return types.ResearchSettings{
		MaxDepth:   depth,
		BatchSize:  3,
		MaxResults: 3,
		Language:   "en",
	}
}

// validConfig returns a well-formed query configuration.
func validConfig(query string) types.QueryConfig {
	return types.QueryConfig{
		Query: query,
		Goals: []string{"goal for " + query},
	}
}
