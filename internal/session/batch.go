package session

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BatchOptions bounds EnrichMany.
type BatchOptions struct {
	// Workers caps concurrent enrichments. Zero or less means 4.
	Workers int
	// RatePerSecond throttles call starts. Zero disables throttling.
	RatePerSecond float64
}

// EnrichMany enriches the selected leads concurrently. Each lead succeeds
// or fails on its own; only cancellation of ctx is returned. Leads that are
// already pending are skipped. A newer research commit stops the batch:
// running calls are cancelled and nothing further is started.
func (s *Session) EnrichMany(ctx context.Context, sel Selection, e Enricher, opts BatchOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	log := zap.L().With(
		zap.String("session", s.id),
		zap.String("phase", "enrich_batch"),
		zap.Uint64("generation", sel.Generation),
	)

	gen, genDone := s.generation()
	if gen != sel.Generation {
		log.Info("session: batch superseded before start")
		return nil
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(genDone, cancel)
	defer stop()

	log.Info("session: batch enrichment starting", zap.Int("leads", len(sel.Indexes)), zap.Int("workers", workers))

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(workers)

	for _, idx := range sel.Indexes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return eris.Wrap(err, "session: rate limit wait")
				}
			}
			t, err := s.BeginAt(sel.Generation, idx)
			switch {
			case errors.Is(err, ErrStaleResult):
				cancel()
				return nil
			case errors.Is(err, ErrAlreadyPending), errors.Is(err, ErrLeadNotFound):
				log.Debug("session: skipping lead", zap.Int("index", idx), zap.Error(err))
				return nil
			case err != nil:
				return err
			}
			return s.run(gctx, t, e)
		})
	}

	waitErr := g.Wait()
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "session: batch enrichment cancelled")
	}
	if genDone.Err() != nil {
		log.Info("session: batch superseded by a newer research")
		return nil
	}
	return waitErr
}
