package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/deep-search/internal/types"
)

// SessionState is the lifecycle state of a research session.
type SessionState string

// Session lifecycle states. Completed and Error are terminal.
const (
	SessionStateNone        SessionState = "none"
	SessionStateInitialized SessionState = "initialized"
	SessionStateResearching SessionState = "researching"
	SessionStateCompleted   SessionState = "completed"
	SessionStateError       SessionState = "error"
)

// Status is a point-in-time snapshot of a session, safe to read mid-run.
type Status struct {
	SessionID    string
	State        SessionState
	ErrorMessage string
	Round        int
	HasResults   bool
}

// Session is the top-level controller for one research run. It drives steps
// strictly sequentially — each round's queries are derived from the findings
// of the rounds before it — and consolidates all findings into final results
// once the depth budget is exhausted.
type Session struct {
	id    string
	input types.ResearchInput

	deriver     QueryDeriver
	synthesizer ReportSynthesizer
	discoverer  Discoverer
	extractor   Extractor

	mu         sync.RWMutex
	state      SessionState
	errMessage string
	round      int
	results    *types.ResearchResults

	startTime time.Time
	endTime   time.Time
	rounds    []types.RoundRecord
	findings  []string
	verbose   bool
}

// NewSession constructs a session in the none state. All four collaborators
// are injected; the session never constructs its own.
func NewSession(input types.ResearchInput, deriver QueryDeriver, synthesizer ReportSynthesizer, discoverer Discoverer, extractor Extractor) *Session {
	return &Session{
		input:       input,
		deriver:     deriver,
		synthesizer: synthesizer,
		discoverer:  discoverer,
		extractor:   extractor,
		state:       SessionStateNone,
	}
}

// ID returns the session identifier, empty until initialized.
func (s *Session) ID() string { return s.id }

// SetVerbose enables progress logging for the session and everything under it.
func (s *Session) SetVerbose(v bool) { s.verbose = v }

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) setRound(round int) {
	s.mu.Lock()
	s.round = round
	s.mu.Unlock()
}

func (s *Session) fail(msg string) error {
	s.mu.Lock()
	s.errMessage = msg
	s.state = SessionStateError
	s.mu.Unlock()
	return fmt.Errorf("%s", msg)
}

// Initialize validates the research input and allocates per-round storage.
// On validation failure the session transitions to its terminal error state.
func (s *Session) Initialize() error {
	if err := s.input.Validate(); err != nil {
		return s.fail(err.Error())
	}
	if s.deriver == nil || s.synthesizer == nil || s.discoverer == nil || s.extractor == nil {
		return s.fail("invalid session wiring: missing collaborator")
	}

	s.id = fmt.Sprintf("session-%s-%s", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	s.rounds = make([]types.RoundRecord, 0, s.input.Settings.MaxDepth)
	s.findings = make([]string, 0, s.input.Settings.MaxDepth)
	s.setState(SessionStateInitialized)
	return nil
}

// Run executes the iterative research loop: derive a batch of queries from
// the topic and all prior findings, run a step over the batch, accumulate its
// findings, and repeat until the depth budget is exhausted. A final synthesis
// call consolidates every round into one report; synthesis failure degrades
// into a placeholder report rather than discarding the findings.
func (s *Session) Run(ctx context.Context) error {
	if s.state != SessionStateInitialized {
		return fmt.Errorf("cannot start research in state: %s", s.state)
	}
	s.setState(SessionStateResearching)
	s.startTime = time.Now()

	maxDepth := s.input.Settings.MaxDepth
	for round := 1; round <= maxDepth; round++ {
		s.setRound(round)
		if s.verbose {
			log.Printf("[SESSION] %s round %d/%d", s.id, round, maxDepth)
		}

		configs := s.deriveRound(ctx, round)

		step, err := NewStep(round, configs, s.discoverer, s.extractor)
		if err != nil {
			s.rounds = append(s.rounds, step.Record())
			return s.fail(fmt.Sprintf("round %d setup failed: %v", round, err))
		}
		step.SetVerbose(s.verbose)

		if err := s.runStep(ctx, step); err != nil {
			s.rounds = append(s.rounds, step.Record())
			if s.input.Settings.SkipEmptyRounds {
				if s.verbose {
					log.Printf("[SESSION] %s round %d produced no findings, skipping: %v", s.id, round, err)
				}
				continue
			}
			// A round with zero findings is fatal: every later round would
			// refine against nothing and silently degrade.
			return s.fail(fmt.Sprintf("round %d failed: %v", round, err))
		}

		record, _ := step.Results()
		s.rounds = append(s.rounds, record)
		if record.Learnings != "" {
			s.findings = append(s.findings, record.Learnings)
		}
	}

	s.finish(s.synthesizeResults(ctx))
	return nil
}

// runStep runs one step under the configured per-round timeout.
func (s *Session) runStep(ctx context.Context, step *Step) error {
	if t := s.input.Settings.SearchTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer cancel()
	}
	return step.Run(ctx)
}

// deriveRound asks the query deriver for this round's batch. Derivation is
// never allowed to halt the run: a hard failure, an empty batch, or a batch
// of entirely malformed configs all fall back to a single topic-built query.
func (s *Session) deriveRound(ctx context.Context, round int) []types.QueryConfig {
	batch, err := s.deriver.DeriveQueries(ctx, s.input.Topic, s.findings, s.input.Settings.BatchSize)
	if err != nil && s.verbose {
		log.Printf("[SESSION] %s round %d query derivation failed, using fallback: %v", s.id, round, err)
	}

	configs := make([]types.QueryConfig, 0, len(batch))
	for _, config := range batch {
		if err := config.Validate(); err != nil {
			continue
		}
		config.MaxResults = s.input.Settings.MaxResults
		configs = append(configs, config.Normalize())
	}
	if len(configs) > s.input.Settings.BatchSize {
		configs = configs[:s.input.Settings.BatchSize]
	}

	if len(configs) == 0 {
		configs = []types.QueryConfig{s.fallbackQuery()}
	}
	return configs
}

// fallbackQuery builds the single-item batch used when query derivation
// yields nothing usable.
func (s *Session) fallbackQuery() types.QueryConfig {
	return types.QueryConfig{
		Query:      s.input.Topic,
		Goals:      []string{fmt.Sprintf("What are the key facts about %s?", s.input.Topic)},
		MaxResults: s.input.Settings.MaxResults,
	}.Normalize()
}

// synthesizeResults runs the report synthesizer over all accumulated
// findings. On failure it returns a placeholder result that carries the raw
// findings, so no information is silently lost.
func (s *Session) synthesizeResults(ctx context.Context) *types.ResearchResults {
	results, err := s.synthesizer.Synthesize(ctx, s.input.Topic, s.findings)
	if err == nil && results != nil {
		return results
	}
	if s.verbose {
		log.Printf("[SESSION] %s report synthesis failed, returning raw findings: %v", s.id, err)
	}
	return &types.ResearchResults{
		MainReport:      fmt.Sprintf("Report synthesis failed (%v). The raw findings from %d completed rounds are listed as key learnings.", err, len(s.rounds)),
		KeyLearnings:    append([]string(nil), s.findings...),
		AdditionalNotes: "generated without synthesis due to a synthesizer failure",
	}
}

func (s *Session) finish(results *types.ResearchResults) {
	s.endTime = time.Now()
	s.mu.Lock()
	s.results = results
	s.state = SessionStateCompleted
	s.mu.Unlock()
	if s.verbose {
		log.Printf("[SESSION] %s completed in %s", s.id, s.endTime.Sub(s.startTime).Round(time.Millisecond))
	}
}

// Status returns a snapshot of the session, safe to call from any state,
// including concurrently with Run.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		SessionID:    s.id,
		State:        s.state,
		ErrorMessage: s.errMessage,
		Round:        s.round,
		HasResults:   s.results != nil,
	}
}

// Findings returns the findings accumulated so far, one entry per completed round.
func (s *Session) Findings() []string {
	return append([]string(nil), s.findings...)
}

// Results returns the final research results and true only when the session completed.
func (s *Session) Results() (*types.ResearchResults, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != SessionStateCompleted || s.results == nil {
		return nil, false
	}
	return s.results, true
}

// Archive returns the pure serialization of the session for logging and
// diagnostics. Call after Run has returned; the engine never reads this back.
func (s *Session) Archive() types.SessionArchive {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archive := types.SessionArchive{
		SessionID:    s.id,
		Topic:        s.input.Topic,
		State:        string(s.state),
		ErrorMessage: s.errMessage,
		StartTime:    s.startTime,
		Rounds:       append([]types.RoundRecord(nil), s.rounds...),
		FinalResults: s.results,
	}
	if !s.endTime.IsZero() {
		end := s.endTime
		archive.EndTime = &end
	}
	return archive
}

// Summary returns a one-line description of the session outcome.
func (s *Session) Summary() string {
	status := s.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "session %s: %s", status.SessionID, status.State)
	if status.ErrorMessage != "" {
		fmt.Fprintf(&b, " (%s)", status.ErrorMessage)
	}
	return b.String()
}
