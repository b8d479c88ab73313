package session

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/deep-search/internal/types"
)

// JobState is the lifecycle state of a research job.
type JobState string

// Job lifecycle states. Completed and Failed are terminal.
const (
	JobStateNone        JobState = "none"
	JobStateInitialized JobState = "initialized"
	JobStateRunning     JobState = "running"
	JobStateCompleted   JobState = "completed"
	JobStateFailed      JobState = "failed"
)

// Job is the atomic unit of research work: one query, discovered references,
// and the per-goal answers condensed from them. A job is owned exclusively by
// the step that created it and is never reused or rerun.
type Job struct {
	id     string
	config types.QueryConfig

	discoverer Discoverer
	extractor  Extractor

	state        JobState
	errMessage   string
	serpResults  []types.SearchResult
	answers      map[string]string
	learnings    string
	verbose      bool
}

// NewJob constructs a job in the none state. Collaborators are injected, not
// constructed here, so tests can substitute deterministic fakes.
func NewJob(config types.QueryConfig, discoverer Discoverer, extractor Extractor) *Job {
	return &Job{
		id:         uuid.NewString(),
		config:     config,
		discoverer: discoverer,
		extractor:  extractor,
		state:      JobStateNone,
	}
}

// ID returns the job's stable identifier.
func (j *Job) ID() string { return j.id }

// State returns the job's current lifecycle state.
func (j *Job) State() JobState { return j.state }

// ErrorMessage returns the recorded failure reason, empty unless failed.
func (j *Job) ErrorMessage() string { return j.errMessage }

// Config returns the job's query configuration.
func (j *Job) Config() types.QueryConfig { return j.config }

// SetVerbose enables progress logging for this job.
func (j *Job) SetVerbose(v bool) { j.verbose = v }

// fail records the error and moves the job to its terminal failed state.
func (j *Job) fail(msg string) error {
	j.errMessage = msg
	j.state = JobStateFailed
	return fmt.Errorf("%s", msg)
}

// Initialize validates the query configuration and collaborator wiring.
// On success the job transitions to initialized; on any failure it
// transitions to failed with a descriptive error. Calling Initialize twice
// is not supported.
func (j *Job) Initialize() error {
	if err := j.config.Validate(); err != nil {
		return j.fail(err.Error())
	}
	if j.discoverer == nil {
		return j.fail("invalid job wiring: missing discovery collaborator")
	}
	if j.extractor == nil {
		return j.fail("invalid job wiring: missing extraction collaborator")
	}
	j.config = j.config.Normalize()
	j.state = JobStateInitialized
	return nil
}

// Run executes the job: discovery, extraction, then reduction of the per-goal
// answers into a findings string. Only legal from the initialized state.
// Collaborator errors are captured on the job, not propagated as faults:
// a failed run leaves the job in its terminal failed state and returns the
// recorded error.
func (j *Job) Run(ctx context.Context) error {
	if j.state != JobStateInitialized {
		return fmt.Errorf("cannot run job in state: %s", j.state)
	}
	j.state = JobStateRunning

	if j.verbose {
		log.Printf("[JOB] %s searching: %s", j.id, j.config.Query)
	}

	results, err := j.discoverer.Discover(ctx, j.config.Query, j.config.ResultCount())
	if err != nil {
		return j.fail(err.Error())
	}
	if len(results) == 0 {
		return j.fail("no results found")
	}
	j.serpResults = results

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}

	answers, err := j.extractor.Extract(ctx, urls, j.config.Goals)
	if err != nil {
		return j.fail(err.Error())
	}
	if len(answers) == 0 {
		return j.fail("extraction returned no answers")
	}
	j.answers = answers
	j.learnings = j.reduceLearnings()

	if j.verbose {
		log.Printf("[JOB] %s completed with %d results", j.id, len(results))
	}
	j.state = JobStateCompleted
	return nil
}

// reduceLearnings builds the findings string: the query text followed by one
// line per goal whose answer carries factual content. Not-found answers are
// excluded rather than reported.
func (j *Job) reduceLearnings() string {
	var b strings.Builder
	b.WriteString(j.config.Query)
	for i, goal := range j.config.Goals {
		answer, ok := j.answers[types.GoalKey(i)]
		if !ok || answer == "" || answer == types.NotFound {
			continue
		}
		b.WriteString("\n- ")
		b.WriteString(goal)
		b.WriteString(": ")
		b.WriteString(answer)
	}
	return b.String()
}

// Results returns the job's record and true only when the job completed.
// Running or failed jobs never expose partial data here.
func (j *Job) Results() (types.JobRecord, bool) {
	if j.state != JobStateCompleted {
		return types.JobRecord{}, false
	}
	return j.Record(), true
}

// Record returns the job's serialization regardless of state, for diagnostics.
func (j *Job) Record() types.JobRecord {
	return types.JobRecord{
		ID:           j.id,
		Query:        j.config,
		State:        string(j.state),
		ErrorMessage: j.errMessage,
		SerpResults:  j.serpResults,
		Answers:      j.answers,
		Learnings:    j.learnings,
	}
}
