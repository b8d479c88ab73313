// Package types provides type definitions for structured data used throughout the deep-search system.
package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxGoalsPerQuery caps the number of research goals a single query may carry.
// Externally supplied goal lists are truncated to this cap rather than rejected.
const MaxGoalsPerQuery = 4

// NotFound is the sentinel answer for a goal with no factual information in the sources.
const NotFound = "NA"

// DefaultResultCount is the discovery result bound used when a query carries none.
const DefaultResultCount = 3

// SearchResult is a single discovery record returned for a query.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	PageAge     string `json:"page_age,omitempty"` // freshness metadata, when the backend provides it
}

// QueryConfig is one search query plus the specific goals its results must answer.
// It is immutable once handed to the engine.
type QueryConfig struct {
	Query      string   `json:"query"`
	Goals      []string `json:"goals"`
	Context    string   `json:"context,omitempty"`
	MaxResults int      `json:"max_results,omitempty"` // discovery result bound; 0 means DefaultResultCount
}

// Validate checks that the config can drive a research job.
func (q *QueryConfig) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("invalid query configuration: missing query")
	}
	if len(q.Goals) == 0 {
		return fmt.Errorf("invalid query configuration: no research goals provided")
	}
	return nil
}

// Normalize truncates the goal list to MaxGoalsPerQuery and applies the
// default result bound. Returns the receiver's normalized copy.
func (q QueryConfig) Normalize() QueryConfig {
	if len(q.Goals) > MaxGoalsPerQuery {
		q.Goals = q.Goals[:MaxGoalsPerQuery]
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultResultCount
	}
	return q
}

// ResultCount returns the discovery result bound for this query.
func (q *QueryConfig) ResultCount() int {
	if q.MaxResults > 0 {
		return q.MaxResults
	}
	return DefaultResultCount
}

// GoalKey returns the identifier used for the i-th goal (zero-based) in
// extraction answer maps: "goal1", "goal2", ...
func GoalKey(i int) string {
	return fmt.Sprintf("goal%d", i+1)
}

// ResearchSettings controls the shape of a research run.
type ResearchSettings struct {
	MaxDepth        int    `json:"max_depth" validate:"required,gte=1,lte=10"`
	BatchSize       int    `json:"batch_size" validate:"required,gte=1,lte=8"`
	MaxResults      int    `json:"max_results" validate:"required,gte=1,lte=10"`
	SearchTimeout   int    `json:"search_timeout" validate:"gte=0"` // seconds, 0 means collaborator default
	Language        string `json:"language" validate:"required"`
	IncludeAcademic bool   `json:"include_academic_sources"`
	SkipEmptyRounds bool   `json:"skip_empty_rounds"` // skip a round with zero findings instead of failing the run
}

// DefaultSettings returns the standard research configuration.
func DefaultSettings() ResearchSettings {
	return ResearchSettings{
		MaxDepth:        3,
		BatchSize:       3,
		MaxResults:      3,
		SearchTimeout:   300,
		Language:        "en",
		IncludeAcademic: true,
	}
}

// Validate checks the settings using the validator.
func (s *ResearchSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ResearchInput is the top-level request that starts a session.
type ResearchInput struct {
	Topic    string           `json:"topic" validate:"required,min=1"`
	Settings ResearchSettings `json:"settings"`
}

// Validate checks the input topic and its settings.
func (r *ResearchInput) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("invalid research input: missing topic")
	}
	return r.Settings.Validate()
}

// ResearchResults is the final consolidated output of a research session.
// It is created once at the end of a run and never mutated.
type ResearchResults struct {
	MainReport      string   `json:"main_report"`
	KeyLearnings    []string `json:"key_learnings"`
	AreasCovered    []string `json:"areas_covered"`
	AreasToExplore  []string `json:"areas_to_explore"`
	AdditionalNotes string   `json:"additional_notes,omitempty"`
}
