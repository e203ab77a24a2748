// Package oracle defines the extraction oracle: the untrusted external
// analyzer that turns a thread's text into candidate structured entities.
package oracle

import "context"

// Result is the oracle's structured output for one thread. Every field may
// be absent or partial; consumers must treat the whole struct as untrusted.
type Result struct {
	Summary         string           `json:"summary,omitempty"`
	Participants    []Participant    `json:"participants,omitempty"`
	Companies       []Company        `json:"companies,omitempty"`
	ExpertiseClaims []ExpertiseClaim `json:"expertise_claims,omitempty"`
}

// Participant is a person the oracle identified in the thread.
type Participant struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Company is an organization the oracle identified.
type Company struct {
	Domain string `json:"domain"`
	Name   string `json:"name,omitempty"`
}

// ExpertiseClaim attributes an area of expertise to a person with the
// oracle's confidence. Confidence is clamped downstream, never rejected.
type ExpertiseClaim struct {
	PersonEmail string  `json:"person_email"`
	Area        string  `json:"area"`
	Confidence  float64 `json:"confidence"`
}

// Oracle extracts structured entities from a thread's concatenated text.
// Implementations may fail with transport errors, timeouts, or malformed
// output; callers recover per thread and never let one failure abort a run.
type Oracle interface {
	Extract(ctx context.Context, threadText string) (*Result, error)
}
