package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

// Recorder wraps operations with run log entries. A nil Store makes it a
// pass-through. Run log failures are logged and never fail the operation.
type Recorder struct {
	store Store
}

// NewRecorder creates a Recorder over st, which may be nil.
func NewRecorder(st Store) *Recorder {
	return &Recorder{store: st}
}

// Track records a run around fn. fn reports how many leads it handled.
func (r *Recorder) Track(ctx context.Context, kind model.RunKind, company string, fn func(ctx context.Context) (int, error)) error {
	if r == nil || r.store == nil {
		_, err := fn(ctx)
		return err
	}

	log := zap.L().With(zap.String("kind", string(kind)), zap.String("company", company))

	run, err := r.store.CreateRun(ctx, kind, company)
	if err != nil {
		log.Warn("store: create run failed", zap.Error(err))
		_, fnErr := fn(ctx)
		return fnErr
	}

	n, fnErr := fn(ctx)

	outcome := model.RunOutcome{Status: model.RunStatusComplete, LeadCount: n}
	if fnErr != nil {
		outcome.Status = model.RunStatusFailed
		outcome.Error = fnErr.Error()
	}
	// the run is closed even when ctx was cancelled mid-operation.
	if err := r.store.FinishRun(context.WithoutCancel(ctx), run.ID, outcome); err != nil {
		log.Warn("store: finish run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return fnErr
}
