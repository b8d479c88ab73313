// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/deep-search/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintQueryPlan outputs the queries planned for a research round.
func (p *Printer) PrintQueryPlan(round int, configs []types.QueryConfig) {
	if len(configs) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Planned %d queries:\n\n", len(configs)))

	count := min(len(configs), maxItemsToShow)
	for i := 0; i < count; i++ {
		cfg := configs[i]
		query := cfg.Query
		if len(query) > 50 {
			query = query[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, query))
		sb.WriteString(fmt.Sprintf("    Goals: %d\n", len(cfg.Goals)))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(configs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more queries", len(configs)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("ROUND %d QUERY PLAN", round), sb.String())
}

// PrintRoundRecord outputs the outcome of a finished research round.
func (p *Printer) PrintRoundRecord(record *types.RoundRecord) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", record.State))

	completed := 0
	failed := 0
	for _, job := range record.Jobs {
		if job.State == "completed" {
			completed++
		} else if job.State == "failed" {
			failed++
		}
	}
	sb.WriteString(fmt.Sprintf("Jobs:     %d completed, %d failed\n", completed, failed))

	if record.ErrorMessage != "" {
		msg := record.ErrorMessage
		if len(msg) > 50 {
			msg = msg[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("Error:    %s\n", msg))
	}

	p.printBox(fmt.Sprintf("ROUND %d RESULT", record.Round), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSessionSummary outputs the final state of a session.
func (p *Printer) PrintSessionSummary(archive *types.SessionArchive) {
	if archive == nil {
		return
	}

	completedRounds := 0
	for _, round := range archive.Rounds {
		if round.State == "completed" {
			completedRounds++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session:  %s\n", archive.SessionID))
	sb.WriteString(fmt.Sprintf("Topic:    %s\n", archive.Topic))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", archive.State))
	sb.WriteString(fmt.Sprintf("Rounds:   %d completed of %d", completedRounds, len(archive.Rounds)))

	p.printBox("RESEARCH SESSION", sb.String())
}

// PrintResearchResults outputs the synthesized report sections.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintResearchResults(results *types.ResearchResults) {
	if results == nil {
		return
	}

	fmt.Fprintf(p.out, "\n%s\n\n", results.MainReport)

	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(p.out, "%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(p.out, "  • %s\n", item)
		}
		fmt.Fprintln(p.out)
	}

	printList("Key Learnings", results.KeyLearnings)
	printList("Areas Covered", results.AreasCovered)
	printList("Areas To Explore", results.AreasToExplore)

	if results.AdditionalNotes != "" {
		fmt.Fprintf(p.out, "Notes: %s\n", results.AdditionalNotes)
	}
}
