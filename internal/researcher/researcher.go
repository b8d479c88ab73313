// Package researcher implements the LLM-driven planning side of a research
// session: deriving the next round of search queries and synthesizing the
// final report.
package researcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/deep-search/internal/llm"
	"github.com/jonathan/deep-search/internal/prompts"
	"github.com/jonathan/deep-search/internal/types"
)

// Researcher plans queries and writes reports through an LLM client.
type Researcher struct {
	llm     llm.Client
	verbose bool
}

// New creates a Researcher.
func New(client llm.Client, verbose bool) *Researcher {
	return &Researcher{llm: client, verbose: verbose}
}

var queriesSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "minLength": 1},
			"goals": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
		},
		"required": []string{"query", "goals"},
	},
}

var resultsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"main_report":      map[string]any{"type": "string", "minLength": 1},
		"key_learnings":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"areas_covered":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"areas_to_explore": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"additional_notes": map[string]any{"type": "string"},
	},
	"required": []string{"main_report", "key_learnings"},
}

// DeriveQueries asks the LLM to plan the next batch of search queries for the
// topic, informed by findings from earlier rounds.
func (r *Researcher) DeriveQueries(ctx context.Context, topic string, priorFindings []string, batchSize int) ([]types.QueryConfig, error) {
	findingsBlock := "(none yet)"
	if len(priorFindings) > 0 {
		findingsBlock = strings.Join(priorFindings, "\n\n")
	}

	prompt := prompts.Format(prompts.MustGet("research.json", "derive-queries"), map[string]string{
		"Topic":         topic,
		"PriorFindings": findingsBlock,
		"BatchSize":     fmt.Sprintf("%d", batchSize),
	})

	raw, err := r.llm.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("query derivation failed: %w", err)
	}

	if err := validateAgainst(queriesSchema, raw, "query plan"); err != nil {
		return nil, err
	}

	var parsed []struct {
		Query string   `json:"query"`
		Goals []string `json:"goals"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("query plan is not valid JSON: %w", err)
	}

	configs := make([]types.QueryConfig, 0, len(parsed))
	for _, p := range parsed {
		configs = append(configs, types.QueryConfig{Query: p.Query, Goals: p.Goals})
	}

	if r.verbose {
		log.Printf("[RESEARCHER] Derived %d queries for %q", len(configs), topic)
	}
	return configs, nil
}

// Synthesize asks the LLM to turn the session's accumulated findings into the
// final research report.
func (r *Researcher) Synthesize(ctx context.Context, topic string, findings []string) (*types.ResearchResults, error) {
	prompt := prompts.Format(prompts.MustGet("research.json", "synthesize-report"), map[string]string{
		"Topic":    topic,
		"Findings": strings.Join(findings, "\n\n"),
	})

	raw, err := r.llm.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, fmt.Errorf("report synthesis failed: %w", err)
	}

	if err := validateAgainst(resultsSchema, raw, "report"); err != nil {
		return nil, err
	}

	var parsed struct {
		MainReport      string   `json:"main_report"`
		KeyLearnings    []string `json:"key_learnings"`
		AreasCovered    []string `json:"areas_covered"`
		AreasToExplore  []string `json:"areas_to_explore"`
		AdditionalNotes string   `json:"additional_notes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("report is not valid JSON: %w", err)
	}

	if r.verbose {
		log.Printf("[RESEARCHER] Synthesized report for %q: %d learnings", topic, len(parsed.KeyLearnings))
	}
	return &types.ResearchResults{
		MainReport:      parsed.MainReport,
		KeyLearnings:    parsed.KeyLearnings,
		AreasCovered:    parsed.AreasCovered,
		AreasToExplore:  parsed.AreasToExplore,
		AdditionalNotes: parsed.AdditionalNotes,
	}, nil
}

func validateAgainst(schema map[string]any, raw, what string) error {
	validation, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%s is not valid JSON: %w", what, err)
	}
	if !validation.Valid() {
		var issues []string
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("%s failed validation: %s", what, strings.Join(issues, "; "))
	}
	return nil
}
