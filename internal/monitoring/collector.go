// Package monitoring watches the run log and raises alerts when research,
// enrichment or dispatch runs start failing.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

// maxRuns caps how many runs one collection reads.
const maxRuns = 10000

// KindMetrics counts runs of one kind.
type KindMetrics struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`
	Leads    int     `json:"leads"`
}

// Finished counts runs that reached a terminal status.
func (k KindMetrics) Finished() int { return k.Complete + k.Failed }

// MetricsSnapshot holds a point-in-time view of the run log.
type MetricsSnapshot struct {
	Research KindMetrics `json:"research"`
	Enrich   KindMetrics `json:"enrich"`
	Dispatch KindMetrics `json:"dispatch"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Kind returns the metrics for k, or nil for an unknown kind.
func (s *MetricsSnapshot) Kind(k model.RunKind) *KindMetrics {
	switch k {
	case model.RunKindResearch:
		return &s.Research
	case model.RunKindEnrich:
		return &s.Enrich
	case model.RunKindDispatch:
		return &s.Dispatch
	}
	return nil
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over runs started in the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: maxRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		m := snap.Kind(r.Kind)
		if m == nil {
			continue
		}
		m.Total++
		switch r.Status {
		case model.RunStatusComplete:
			m.Complete++
			m.Leads += r.LeadCount
		case model.RunStatusFailed:
			m.Failed++
		default:
			m.Running++
		}
	}

	for _, m := range []*KindMetrics{&snap.Research, &snap.Enrich, &snap.Dispatch} {
		if f := m.Finished(); f > 0 {
			m.FailRate = float64(m.Failed) / float64(f)
		}
	}
	return snap, nil
}
