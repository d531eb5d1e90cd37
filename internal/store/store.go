// Package store persists the run log: one record per research, enrichment
// or dispatch operation. Lead and contact data are never written.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("store: run not found")

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind    model.RunKind   `json:"kind,omitempty"`
	Status  model.RunStatus `json:"status,omitempty"`
	Company string          `json:"company,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the run log persistence interface.
type Store interface {
	CreateRun(ctx context.Context, kind model.RunKind, company string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, outcome model.RunOutcome) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured driver and migrates the schema. The
// "none" driver, or an empty one, returns a nil Store.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
