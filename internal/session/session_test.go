package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/deep-search/internal/types"
)

func newTestSession(input types.ResearchInput, deriver *fakeDeriver, synth *fakeSynthesizer, disc *fakeDiscoverer, ext *fakeExtractor) *Session {
	if deriver == nil {
		deriver = &fakeDeriver{}
	}
	if synth == nil {
		synth = &fakeSynthesizer{}
	}
	if disc == nil {
		disc = &fakeDiscoverer{}
	}
	if ext == nil {
		ext = &fakeExtractor{}
	}
	return NewSession(input, deriver, synth, disc, ext)
}

func TestSessionInitialize_Valid(t *testing.T) {
	input := types.ResearchInput{Topic: "AI in healthcare", Settings: testSettings(2)}
	s := newTestSession(input, nil, nil, nil, nil)

	require.NoError(t, s.Initialize())

	assert.Equal(t, SessionStateInitialized, s.Status().State)
	assert.NotEmpty(t, s.ID())
}

func TestSessionInitialize_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input types.ResearchInput
	}{
		{"Empty topic", types.ResearchInput{Topic: "", Settings: testSettings(2)}},
		{"Whitespace topic", types.ResearchInput{Topic: "  ", Settings: testSettings(2)}},
		{"Zero depth", types.ResearchInput{Topic: "t", Settings: types.ResearchSettings{BatchSize: 1, MaxResults: 1, Language: "en"}}},
		{"Depth over cap", types.ResearchInput{Topic: "t", Settings: types.ResearchSettings{MaxDepth: 99, BatchSize: 1, MaxResults: 1, Language: "en"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(tt.input, nil, nil, nil, nil)

			err := s.Initialize()

			require.Error(t, err)
			status := s.Status()
			assert.Equal(t, SessionStateError, status.State)
			assert.NotEmpty(t, status.ErrorMessage)
		})
	}
}

func TestSessionInitialize_MissingCollaborator(t *testing.T) {
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := NewSession(input, nil, &fakeSynthesizer{}, &fakeDiscoverer{}, &fakeExtractor{})

	require.Error(t, s.Initialize())
	assert.Equal(t, SessionStateError, s.Status().State)
}

func TestSessionRun_RequiresInitializedState(t *testing.T) {
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := newTestSession(input, nil, nil, nil, nil)

	err := s.Run(context.Background())

	require.Error(t, err)
}

func TestSessionRun_SequentialRounds(t *testing.T) {
	// Depth D means exactly D rounds, each derived from all prior findings.
	deriver := &fakeDeriver{}
	synth := &fakeSynthesizer{}
	input := types.ResearchInput{Topic: "fusion power", Settings: testSettings(3)}
	s := newTestSession(input, deriver, synth, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 3, deriver.callCount())
	// Round 1 sees no prior findings; each later round sees one more entry.
	assert.Empty(t, deriver.findings[0])
	assert.Len(t, deriver.findings[1], 1)
	assert.Len(t, deriver.findings[2], 2)

	archive := s.Archive()
	require.Len(t, archive.Rounds, 3)
	for i, round := range archive.Rounds {
		assert.Equal(t, i+1, round.Round)
		assert.Equal(t, string(StepStateCompleted), round.State)
	}
}

func TestSessionRun_FeedbackLoopScenario(t *testing.T) {
	// Round 1: one query "T" with goals g1, g2; extraction answers g1 and
	// flags g2 as not found. Round 2 must be derived from "T\n- g1: A".
	deriver := &fakeDeriver{fn: func(topic string, _ []string, _ int) ([]types.QueryConfig, error) {
		return []types.QueryConfig{{Query: topic, Goals: []string{"g1", "g2"}}}, nil
	}}
	extractor := &fakeExtractor{fn: func(_ []string, goals []string) (map[string]string, error) {
		answers := map[string]string{"goal1": "A"}
		for i := 1; i < len(goals); i++ {
			answers[types.GoalKey(i)] = types.NotFound
		}
		return answers, nil
	}}
	input := types.ResearchInput{Topic: "T", Settings: testSettings(2)}
	s := newTestSession(input, deriver, nil, nil, extractor)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	require.Equal(t, 2, deriver.callCount())
	assert.Equal(t, []string{"T\n- g1: A"}, deriver.findings[1])
	assert.Equal(t, []string{"T\n- g1: A", "T\n- g1: A"}, s.Findings())
}

func TestSessionRun_FallbackOnEmptyBatch(t *testing.T) {
	deriver := &fakeDeriver{fn: func(string, []string, int) ([]types.QueryConfig, error) {
		return nil, nil
	}}
	input := types.ResearchInput{Topic: "rare topic", Settings: testSettings(1)}
	s := newTestSession(input, deriver, nil, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	archive := s.Archive()
	require.Len(t, archive.Rounds, 1)
	require.Len(t, archive.Rounds[0].Jobs, 1)
	for _, job := range archive.Rounds[0].Jobs {
		assert.Equal(t, "rare topic", job.Query.Query)
		require.NotEmpty(t, job.Query.Goals)
	}
}

func TestSessionRun_FallbackOnDeriverError(t *testing.T) {
	deriver := &fakeDeriver{fn: func(string, []string, int) ([]types.QueryConfig, error) {
		return nil, fmt.Errorf("model overloaded")
	}}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := newTestSession(input, deriver, nil, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, SessionStateCompleted, s.Status().State)
}

func TestSessionRun_DiscardsMalformedDerivedConfigs(t *testing.T) {
	deriver := &fakeDeriver{fn: func(topic string, _ []string, _ int) ([]types.QueryConfig, error) {
		return []types.QueryConfig{
			{Query: "", Goals: []string{"g"}},
			{Query: "usable", Goals: []string{"g"}},
			{Query: "no goals"},
		}, nil
	}}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := newTestSession(input, deriver, nil, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	archive := s.Archive()
	require.Len(t, archive.Rounds[0].Jobs, 1)
	for _, job := range archive.Rounds[0].Jobs {
		assert.Equal(t, "usable", job.Query.Query)
	}
}

func TestSessionRun_CapsBatchSize(t *testing.T) {
	deriver := &fakeDeriver{fn: func(string, []string, int) ([]types.QueryConfig, error) {
		var batch []types.QueryConfig
		for i := 0; i < 10; i++ {
			batch = append(batch, validConfig(fmt.Sprintf("q%d", i)))
		}
		return batch, nil
	}}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := newTestSession(input, deriver, nil, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	archive := s.Archive()
	assert.Len(t, archive.Rounds[0].Jobs, input.Settings.BatchSize)
}

func TestSessionRun_FailedRoundIsFatal(t *testing.T) {
	discoverer := &fakeDiscoverer{fn: func(string, int) ([]types.SearchResult, error) {
		return nil, fmt.Errorf("search down")
	}}
	synth := &fakeSynthesizer{}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(2)}
	s := newTestSession(input, nil, synth, discoverer, nil)
	require.NoError(t, s.Initialize())

	err := s.Run(context.Background())

	require.Error(t, err)
	status := s.Status()
	assert.Equal(t, SessionStateError, status.State)
	assert.Contains(t, status.ErrorMessage, "round 1 failed")
	assert.False(t, status.HasResults)

	// Synthesis never runs for a failed session.
	assert.Empty(t, synth.findings)
	_, ok := s.Results()
	assert.False(t, ok)
}

func TestSessionRun_SkipEmptyRoundsOption(t *testing.T) {
	// With the skip option, a round where every job fails is recorded and
	// skipped instead of failing the run.
	failures := 0
	discoverer := &fakeDiscoverer{fn: func(query string, _ int) ([]types.SearchResult, error) {
		if failures == 0 {
			failures++
			return nil, fmt.Errorf("search down")
		}
		return resultsFor(query, 1), nil
	}}
	settings := testSettings(2)
	settings.SkipEmptyRounds = true
	input := types.ResearchInput{Topic: "t", Settings: settings}
	s := newTestSession(input, nil, nil, discoverer, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, SessionStateCompleted, s.Status().State)
	archive := s.Archive()
	require.Len(t, archive.Rounds, 2)
	assert.Equal(t, string(StepStateFailed), archive.Rounds[0].State)
	assert.Equal(t, string(StepStateCompleted), archive.Rounds[1].State)
	assert.Len(t, s.Findings(), 1)
}

func TestSessionRun_SynthesisFailureDegrades(t *testing.T) {
	synth := &fakeSynthesizer{fn: func(string, []string) (*types.ResearchResults, error) {
		return nil, fmt.Errorf("synthesis model unavailable")
	}}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(2)}
	s := newTestSession(input, nil, synth, nil, nil)
	require.NoError(t, s.Initialize())

	// A synthesis failure is not a run failure.
	require.NoError(t, s.Run(context.Background()))

	status := s.Status()
	assert.Equal(t, SessionStateCompleted, status.State)
	assert.True(t, status.HasResults)

	results, ok := s.Results()
	require.True(t, ok)
	assert.NotEmpty(t, results.MainReport)
	assert.Contains(t, results.MainReport, "synthesis failed")
	// The raw accumulated findings survive as key learnings.
	assert.Equal(t, s.Findings(), results.KeyLearnings)
}

func TestSessionRun_SynthesizerReceivesAllFindings(t *testing.T) {
	synth := &fakeSynthesizer{}
	input := types.ResearchInput{Topic: "t", Settings: testSettings(3)}
	s := newTestSession(input, nil, synth, nil, nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.Run(context.Background()))

	assert.Len(t, synth.findings, 3)
	assert.Equal(t, s.Findings(), synth.findings)
}

func TestSessionStatus_SnapshotFields(t *testing.T) {
	input := types.ResearchInput{Topic: "t", Settings: testSettings(1)}
	s := newTestSession(input, nil, nil, nil, nil)

	status := s.Status()
	assert.Equal(t, SessionStateNone, status.State)
	assert.False(t, status.HasResults)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Run(context.Background()))

	status = s.Status()
	assert.Equal(t, SessionStateCompleted, status.State)
	assert.Equal(t, 1, status.Round)
	assert.True(t, status.HasResults)
}

func TestSessionArchive(t *testing.T) {
	input := types.ResearchInput{Topic: "archive topic", Settings: testSettings(2)}
	s := newTestSession(input, nil, nil, nil, nil)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Run(context.Background()))

	archive := s.Archive()

	assert.Equal(t, s.ID(), archive.SessionID)
	assert.Equal(t, "archive topic", archive.Topic)
	assert.Equal(t, string(SessionStateCompleted), archive.State)
	assert.False(t, archive.StartTime.IsZero())
	require.NotNil(t, archive.EndTime)
	assert.False(t, archive.EndTime.IsZero())
	assert.Len(t, archive.Rounds, 2)
	require.NotNil(t, archive.FinalResults)
	assert.NotEmpty(t, archive.FinalResults.MainReport)
}
