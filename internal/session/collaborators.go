// Package session implements the research engine: the Session → Step → Job
// hierarchy, its state machines, and the iterative feedback loop that threads
// accumulated findings across rounds.
package session

import (
	"context"

	"github.com/jonathan/deep-search/internal/types"
)

// Discoverer performs a search-engine lookup for one query.
// Implementations handle their own pacing and transient retry; a returned
// error is terminal for the calling job.
type Discoverer interface {
	Discover(ctx context.Context, query string, count int) ([]types.SearchResult, error)
}

// Extractor condenses the content behind a set of URLs into one answer per
// research goal. Answers are keyed by goal identifier (types.GoalKey); a goal
// with no factual information maps to types.NotFound.
type Extractor interface {
	Extract(ctx context.Context, urls []string, goals []string) (map[string]string, error)
}

// QueryDeriver turns a topic plus prior findings into the next round's batch
// of query configurations.
type QueryDeriver interface {
	DeriveQueries(ctx context.Context, topic string, priorFindings []string, batchSize int) ([]types.QueryConfig, error)
}

// ReportSynthesizer consolidates all accumulated findings into the final results.
type ReportSynthesizer interface {
	Synthesize(ctx context.Context, topic string, findings []string) (*types.ResearchResults, error)
}
