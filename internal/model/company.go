package model

import (
	"strings"
	"time"
)

// RunKind identifies which operation a run log entry records.
type RunKind string

const (
	RunKindResearch RunKind = "research"
	RunKindEnrich   RunKind = "enrich"
	RunKindDispatch RunKind = "dispatch"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Company is a research query: a company name or website plus an optional
// location focus.
type Company struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// Trimmed returns the company with surrounding whitespace removed.
func (c Company) Trimmed() Company {
	return Company{
		Name:     strings.TrimSpace(c.Name),
		Location: strings.TrimSpace(c.Location),
	}
}

// Run is one operation recorded in the run log. It carries metadata only,
// never lead or contact data.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Company    string     `json:"company"`
	Status     RunStatus  `json:"status"`
	LeadCount  int        `json:"lead_count"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration reports how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunOutcome is what an operation reports back when its run finishes.
type RunOutcome struct {
	Status    RunStatus `json:"status"`
	LeadCount int       `json:"lead_count"`
	Error     string    `json:"error,omitempty"`
}
