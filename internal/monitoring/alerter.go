package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertResearchFailureRate AlertType = "research_failure_rate"
	AlertEnrichFailureRate   AlertType = "enrich_failure_rate"
	AlertDispatchFailure     AlertType = "dispatch_failure"
)

// Alert is the JSON body posted to the alert webhook.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a MetricsSnapshot into alerts and delivers them.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter returns an Alerter for cfg. MinFinished defaults to 5.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.MinFinished <= 0 {
		cfg.MinFinished = 5
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts snap triggers, in research, enrichment,
// dispatch order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	rate := func(t AlertType, label string, m KindMetrics) {
		if m.Finished() < a.cfg.MinFinished || m.FailRate <= a.cfg.FailureRateThreshold {
			return
		}
		alerts = append(alerts, Alert{
			Type:     t,
			Severity: "high",
			Message: fmt.Sprintf("%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				label, m.FailRate*100, a.cfg.FailureRateThreshold*100, m.Failed, m.Finished(), snap.LookbackHours),
			Details: map[string]any{
				"failure_rate": m.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       m.Failed,
				"finished":     m.Finished(),
			},
			Timestamp: now,
		})
	}
	rate(AlertResearchFailureRate, "Research", snap.Research)
	rate(AlertEnrichFailureRate, "Enrichment", snap.Enrich)

	// Every failed dispatch is a batch of leads the CRM never got.
	if snap.Dispatch.Failed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDispatchFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d CRM dispatch(es) failed in last %dh", snap.Dispatch.Failed, snap.LookbackHours),
			Details: map[string]any{
				"failed_count":   snap.Dispatch.Failed,
				"total_dispatch": snap.Dispatch.Total,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to monitoring.webhook_url and reports how
// many were accepted. A failed delivery is logged and skipped.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	var sent int
	for _, alert := range alerts {
		log := zap.L().With(zap.String("alert", string(alert.Type)))
		if err := a.post(ctx, alert); err != nil {
			log.Error("monitoring: deliver alert", zap.Error(err))
			continue
		}
		log.Debug("monitoring: alert delivered")
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build alert request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("monitoring: alert webhook status %d", resp.StatusCode)
	}
	return nil
}
