package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates the run log on a fixed interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	lookback  int
	interval  time.Duration
	log       *zap.Logger
}

// NewChecker wires a collector and an alerter. A non-positive
// check_interval_secs falls back to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		lookback:  cfg.LookbackWindowHours,
		interval:  interval,
		log:       zap.L().With(zap.String("component", "monitoring")),
	}
}

// Run checks once immediately, then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("run monitor started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)
	defer c.log.Info("run monitor stopped")

	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check does a single collect, evaluate and send pass. It returns the
// alerts that fired and how many reached the webhook.
func (c *Checker) Check(ctx context.Context) ([]Alert, int) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		c.log.Error("monitoring: collect run metrics", zap.Error(err))
		return nil, 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil, 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Warn("run failure alerts fired",
		zap.Int("triggered", len(alerts)),
		zap.Int("sent", sent),
		zap.Int("research_failed", snap.Research.Failed),
		zap.Int("enrich_failed", snap.Enrich.Failed),
		zap.Int("dispatch_failed", snap.Dispatch.Failed),
	)
	return alerts, sent
}
