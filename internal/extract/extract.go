// Package extract turns fetched web pages into answers for research goals.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/deep-search/internal/fetch"
	"github.com/jonathan/deep-search/internal/llm"
	"github.com/jonathan/deep-search/internal/prompts"
	"github.com/jonathan/deep-search/internal/types"
)

// MaxSourceChars caps how much text from a single page goes into the prompt.
const MaxSourceChars = 8000

// WebExtractor fetches result URLs and asks the LLM to answer research goals
// from their content.
type WebExtractor struct {
	llm        llm.Client
	fetchOpts  *fetch.Options
	useBrowser bool
	verbose    bool
}

// NewWebExtractor creates an extractor. When useBrowser is true, pages whose
// plain HTTP fetch yields too little text are re-fetched through a headless
// browser.
func NewWebExtractor(client llm.Client, useBrowser, verbose bool) *WebExtractor {
	return &WebExtractor{
		llm:        client,
		fetchOpts:  fetch.DefaultOptions(),
		useBrowser: useBrowser,
		verbose:    verbose,
	}
}

// Extract fetches the given URLs and returns one answer per goal, keyed
// goal1..goalN. Goals the sources cannot answer map to types.NotFound.
// Unfetchable URLs are skipped; it is an error only when every fetch fails.
func (e *WebExtractor) Extract(ctx context.Context, urls []string, goals []string) (map[string]string, error) {
	if len(goals) == 0 {
		return nil, fmt.Errorf("no goals to extract")
	}

	sources := e.fetchSources(ctx, urls)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources could be fetched")
	}

	prompt := prompts.Format(prompts.MustGet("extraction.json", "answer-goals"), map[string]string{
		"Goals":   formatGoals(goals),
		"Sources": strings.Join(sources, "\n\n"),
	})

	raw, err := e.llm.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	answers, err := parseAnswers(raw, len(goals))
	if err != nil {
		return nil, err
	}

	if e.verbose {
		log.Printf("[EXTRACT] Answered %d goals from %d sources", len(answers), len(sources))
	}
	return answers, nil
}

// fetchSources fetches each URL and returns the readable text blocks that
// succeeded, already truncated and labeled with their URL.
func (e *WebExtractor) fetchSources(ctx context.Context, urls []string) []string {
	var sources []string
	for _, url := range urls {
		text, err := e.fetchOne(ctx, url)
		if err != nil {
			log.Printf("[EXTRACT] Skipping %s: %v", url, err)
			continue
		}
		if text == "" {
			log.Printf("[EXTRACT] Skipping %s: no readable content", url)
			continue
		}
		if len(text) > MaxSourceChars {
			text = text[:MaxSourceChars]
		}
		sources = append(sources, fmt.Sprintf("### %s\n%s", url, text))
	}
	return sources
}

func (e *WebExtractor) fetchOne(ctx context.Context, url string) (string, error) {
	result, err := fetch.URL(ctx, url, e.fetchOpts)
	if err != nil {
		return "", err
	}

	text, err := fetch.ExtractMainText(result.HTML, fetch.ArticleSelectors())
	if err != nil {
		return "", err
	}

	if e.useBrowser && fetch.ShouldUseBrowser(text) {
		html, berr := fetch.BrowserSimple(ctx, url, e.verbose)
		if berr != nil {
			// Keep whatever the plain fetch produced.
			return text, nil
		}
		if rendered, rerr := fetch.ExtractMainText(html, fetch.ArticleSelectors()); rerr == nil && len(rendered) > len(text) {
			return rendered, nil
		}
	}
	return text, nil
}

// parseAnswers validates the LLM payload against a per-goal schema and fills
// in types.NotFound for goals the model omitted.
func parseAnswers(raw string, goalCount int) (map[string]string, error) {
	schemaLoader := gojsonschema.NewGoLoader(answersSchema(goalCount))
	docLoader := gojsonschema.NewStringLoader(raw)

	validation, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("extraction returned invalid JSON: %w", err)
	}
	if !validation.Valid() {
		var issues []string
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("extraction response failed validation: %s", strings.Join(issues, "; "))
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("extraction returned invalid JSON: %w", err)
	}

	answers := make(map[string]string, goalCount)
	for i := 0; i < goalCount; i++ {
		key := types.GoalKey(i)
		answer := strings.TrimSpace(parsed[key])
		if answer == "" {
			answer = types.NotFound
		}
		answers[key] = answer
	}
	return answers, nil
}

// answersSchema builds a schema requiring goal1 and allowing the rest, each
// a string.
func answersSchema(goalCount int) map[string]any {
	properties := make(map[string]any, goalCount)
	for i := 0; i < goalCount; i++ {
		properties[types.GoalKey(i)] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{types.GoalKey(0)},
	}
}

func formatGoals(goals []string) string {
	var lines []string
	for i, goal := range goals {
		lines = append(lines, fmt.Sprintf("%s: %s", types.GoalKey(i), goal))
	}
	return strings.Join(lines, "\n")
}
