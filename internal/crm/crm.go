// Package crm forwards leads to the CRM ingestion webhook.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/store"
)

// DefaultTenant is the tenant identifier sent with every payload.
const DefaultTenant = "sells"

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1024
)

// ErrDispatchFailed is returned when any lead in a batch was not accepted,
// joined with the cause as "%w: %w" so both match with errors.Is/As.
var ErrDispatchFailed = errors.New("CRM dispatch failed")

// LeadDispatchError is a non-2xx webhook response for one lead.
type LeadDispatchError struct {
	Lead       string
	StatusCode int
	Body       string
}

func (e *LeadDispatchError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("lead %q rejected with status %d: %s", e.Lead, e.StatusCode, msg)
}

// Payload is the webhook body for one lead.
type Payload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	JobTitle        string `json:"job_title"`
	CustomField1    string `json:"custom_field1"`
	CustomField2    string `json:"custom_field2"`
	CompanyOverview string `json:"company_overview"`
	TenantSubdomain string `json:"tenant_subdomain"`
}

// BuildPayload maps a lead to the webhook body. custom_field1 carries the
// LinkedIn URL and custom_field2 the enrichment summary.
func BuildPayload(l model.Lead, overview, tenant string) Payload {
	p := Payload{
		Name:            l.Name,
		Email:           lead.BestEmail(l),
		Phone:           lead.BestPhone(l),
		JobTitle:        l.Role,
		CompanyOverview: overview,
		TenantSubdomain: tenant,
	}
	if l.EnrichedData != nil {
		p.CustomField1 = l.EnrichedData.LinkedInURL
		p.CustomField2 = l.EnrichedData.Summary
	}
	return p
}

// Config holds webhook settings.
type Config struct {
	WebhookURL      string
	TenantSubdomain string
	// Timeout bounds each request. Zero means 10s.
	Timeout time.Duration
	// MaxAttempts per lead, counting the first. Zero or one disables retries.
	MaxAttempts int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Dispatcher) {
		d.http = hc
	}
}

// WithRetryConfig overrides the backoff used between attempts.
func WithRetryConfig(rc resilience.RetryConfig) Option {
	return func(d *Dispatcher) {
		d.retry = rc
	}
}

// WithRecorder logs each dispatch in the run log.
func WithRecorder(r *store.Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// Dispatcher posts leads to the webhook concurrently.
type Dispatcher struct {
	cfg      Config
	http     *http.Client
	retry    resilience.RetryConfig
	recorder *store.Recorder
}

// New creates a Dispatcher.
func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.TenantSubdomain == "" {
		cfg.TenantSubdomain = DefaultTenant
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	d := &Dispatcher{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	d.retry = resilience.DefaultRetryConfig()
	for _, o := range opts {
		o(d)
	}
	d.retry.MaxAttempts = cfg.MaxAttempts
	if d.retry.OnRetry == nil {
		d.retry.OnRetry = resilience.RetryLogger("crm", "dispatch")
	}
	return d
}

// Dispatch posts one payload per lead. It succeeds only if every request
// returns 2xx; the first failure cancels the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, company, overview string, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	return d.recorder.Track(ctx, model.RunKindDispatch, company, func(ctx context.Context) (int, error) {
		return len(leads), d.dispatch(ctx, company, overview, leads)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, company, overview string, leads []model.Lead) error {
	if d.cfg.WebhookURL == "" {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, eris.New("crm: webhook URL not configured"))
	}

	log := zap.L().With(zap.String("company", company), zap.String("phase", "dispatch"))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range leads {
		g.Go(func() error {
			_, err := resilience.DoVal(gctx, d.retry, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, d.send(ctx, company, BuildPayload(l, overview, d.cfg.TenantSubdomain))
			})
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("crm: dispatch failed", zap.Error(err), zap.Int("leads", len(leads)))
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	log.Info("crm: dispatch complete",
		zap.Int("leads", len(leads)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, company string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "crm: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "crm: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-company-name", company)

	resp, err := d.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "crm: send lead %q", p.Name), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resilience.ForStatus(&LeadDispatchError{
			Lead:       p.Name,
			StatusCode: resp.StatusCode,
			Body:       string(msg),
		}, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
