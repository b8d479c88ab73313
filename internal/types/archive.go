package types

import "time"

// JobRecord is the pure serialization of one finished research job.
// Failed jobs appear with their error message preserved verbatim.
type JobRecord struct {
	ID           string            `json:"id"`
	Query        QueryConfig       `json:"query_config"`
	State        string            `json:"state"`
	ErrorMessage string            `json:"error_message,omitempty"`
	SerpResults  []SearchResult    `json:"serp_results,omitempty"`
	Answers      map[string]string `json:"answers,omitempty"`
	Learnings    string            `json:"learnings,omitempty"`
}

// RoundRecord is the pure serialization of one research round (a step and its jobs).
type RoundRecord struct {
	Round        int                  `json:"round"`
	State        string               `json:"state"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Jobs         map[string]JobRecord `json:"jobs"`
	Learnings    string               `json:"learnings"`
	Timestamp    time.Time            `json:"timestamp"`
}

// SessionArchive is the pure serialization of a research session, exposed for
// logging and diagnostics. The engine never reads this format back in.
type SessionArchive struct {
	SessionID    string           `json:"session_id"`
	Topic        string           `json:"topic"`
	State        string           `json:"state"`
	ErrorMessage string           `json:"error_message,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	Rounds       []RoundRecord    `json:"rounds"`
	FinalResults *ResearchResults `json:"final_results,omitempty"`
}
