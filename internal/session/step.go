package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/deep-search/internal/types"
)

// StepState is the lifecycle state of a research step.
type StepState string

// Step lifecycle states. Completed and Failed are terminal.
const (
	StepStateNone        StepState = "none"
	StepStateInitialized StepState = "initialized"
	StepStateRunning     StepState = "running"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
)

// Step runs one round of research: a batch of jobs launched concurrently
// against shared discovery and extraction collaborators, joined, and reduced
// to a single findings string. Jobs are addressed by identifier; aggregation
// order is launch order, so the reduction is stable regardless of completion
// order.
type Step struct {
	number int

	jobs  map[string]*Job
	order []string // job IDs in launch order

	state      StepState
	errMessage string
	learnings  string
	verbose    bool
}

// Progress is a point-in-time summary of job states within a step.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Running   int
	Percent   float64
}

// NewStep constructs a step and initializes one job per query configuration.
// Initialization is fail-fast: a batch containing one malformed query never
// starts, and the step is returned in its failed state alongside the error.
func NewStep(number int, configs []types.QueryConfig, discoverer Discoverer, extractor Extractor) (*Step, error) {
	s := &Step{
		number: number,
		jobs:   make(map[string]*Job),
		state:  StepStateNone,
	}

	if len(configs) == 0 {
		return s, s.fail("no query configurations for step")
	}

	for _, config := range configs {
		job := NewJob(config, discoverer, extractor)
		if err := job.Initialize(); err != nil {
			return s, s.fail(fmt.Sprintf("failed to initialize job %s: %v", job.ID(), err))
		}
		s.jobs[job.ID()] = job
		s.order = append(s.order, job.ID())
	}

	s.state = StepStateInitialized
	return s, nil
}

// Number returns the round number this step belongs to.
func (s *Step) Number() int { return s.number }

// State returns the step's current lifecycle state.
func (s *Step) State() StepState { return s.state }

// ErrorMessage returns the recorded failure reason, empty unless failed.
func (s *Step) ErrorMessage() string { return s.errMessage }

// Job returns the job with the given identifier, if present.
func (s *Step) Job(id string) (*Job, bool) {
	job, ok := s.jobs[id]
	return job, ok
}

// SetVerbose enables progress logging for the step and its jobs.
func (s *Step) SetVerbose(v bool) {
	s.verbose = v
	for _, job := range s.jobs {
		job.SetVerbose(v)
	}
}

func (s *Step) fail(msg string) error {
	s.errMessage = msg
	s.state = StepStateFailed
	return fmt.Errorf("%s", msg)
}

// Run launches every job concurrently and waits for all of them to reach a
// terminal state. This is a join barrier, not a race: one job's failure never
// cancels its siblings. Partial success is success — the step fails only when
// every job failed, with an aggregated error naming each job and its reason.
func (s *Step) Run(ctx context.Context) error {
	if s.state != StepStateInitialized {
		return fmt.Errorf("cannot run step in state: %s", s.state)
	}
	s.state = StepStateRunning

	if s.verbose {
		log.Printf("[STEP] round %d running %d jobs", s.number, len(s.order))
	}

	g := new(errgroup.Group)
	for _, id := range s.order {
		job := s.jobs[id]
		g.Go(func() error {
			// Job failures are recorded on the job itself; returning nil
			// keeps the group from cancelling sibling jobs.
			_ = job.Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	completed := 0
	var failures []string
	for _, id := range s.order {
		job := s.jobs[id]
		switch job.State() {
		case JobStateCompleted:
			completed++
		case JobStateFailed:
			failures = append(failures, fmt.Sprintf("%s: %s", id, job.ErrorMessage()))
			if s.verbose {
				log.Printf("[STEP] round %d job %s failed: %s", s.number, id, job.ErrorMessage())
			}
		}
	}

	if completed == 0 {
		return s.fail("all jobs failed: " + strings.Join(failures, "; "))
	}

	s.learnings = s.aggregateLearnings()
	s.state = StepStateCompleted

	if s.verbose {
		log.Printf("[STEP] round %d completed: %d/%d jobs succeeded", s.number, completed, len(s.order))
	}
	return nil
}

// aggregateLearnings joins every completed job's findings in launch order.
// The reduction is pure: the same completed-job set always yields the same
// string.
func (s *Step) aggregateLearnings() string {
	var parts []string
	for _, id := range s.order {
		job := s.jobs[id]
		if job.State() != JobStateCompleted {
			continue
		}
		if record, ok := job.Results(); ok && record.Learnings != "" {
			parts = append(parts, record.Learnings)
		}
	}
	return strings.Join(parts, "\n")
}

// Progress reports how many jobs have reached each state. Safe to call while
// the step is running only from the goroutine that owns the step; jobs update
// their own state fields during Run.
func (s *Step) Progress() Progress {
	p := Progress{Total: len(s.order)}
	for _, job := range s.jobs {
		switch job.State() {
		case JobStateCompleted:
			p.Completed++
		case JobStateFailed:
			p.Failed++
		case JobStateRunning:
			p.Running++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed+p.Failed) / float64(p.Total) * 100
	}
	return p
}

// Results returns the round record — the per-job map including failed jobs,
// plus the aggregated findings — and true only when the step completed.
func (s *Step) Results() (types.RoundRecord, bool) {
	if s.state != StepStateCompleted {
		return types.RoundRecord{}, false
	}
	return s.Record(), true
}

// Record returns the step's serialization regardless of state, for diagnostics.
func (s *Step) Record() types.RoundRecord {
	jobs := make(map[string]types.JobRecord, len(s.jobs))
	for id, job := range s.jobs {
		jobs[id] = job.Record()
	}
	return types.RoundRecord{
		Round:        s.number,
		State:        string(s.state),
		ErrorMessage: s.errMessage,
		Jobs:         jobs,
		Learnings:    s.learnings,
		Timestamp:    time.Now(),
	}
}
