// Package enrichment runs the per-contact enrichment pass and reconciles
// its results with an optional contact-lookup service.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/parse"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/store"
	"github.com/sells-group/lead-engine/pkg/contactout"
)

// ErrEnrichmentFailed wraps any transport, parse or lookup-service
// failure as fmt.Errorf("%w: %w", ErrEnrichmentFailed, cause). eris cannot
// wrap two errors, and session.FailureMessage reads the cause back out of
// Unwrap() []error for display.
var ErrEnrichmentFailed = errors.New("enrichment failed")

const maxLoggedRaw = 4 * 1024

// Subject identifies the contact to enrich.
type Subject struct {
	Name    string
	Role    string
	Company string
}

// Options configures an Orchestrator. Zero values are usable.
type Options struct {
	Parser   *parse.Parser
	Repairer search.Repairer
	// Lookup, when set, adds emails and phones from a contact database.
	Lookup  Lookup
	Timeout time.Duration
	// Recorder, when set, logs each run.
	Recorder *store.Recorder
}

// Orchestrator enriches one contact at a time. It is safe for concurrent
// use.
type Orchestrator struct {
	searcher search.Searcher
	opts     Options
}

// New creates an Orchestrator.
func New(searcher search.Searcher, opts Options) *Orchestrator {
	if opts.Parser == nil {
		opts.Parser = parse.New(parse.Options{})
	}
	return &Orchestrator{searcher: searcher, opts: opts}
}

// Enrich runs the enrichment search and, if configured, the lookup in
// parallel. A non-2xx answer from the lookup service fails the enrichment
// with the service's response body; other lookup errors are logged and the
// AI result stands.
func (o *Orchestrator) Enrich(ctx context.Context, s Subject) (*model.EnrichedData, error) {
	var data *model.EnrichedData
	err := o.opts.Recorder.Track(ctx, model.RunKindEnrich, s.Company, func(ctx context.Context) (int, error) {
		var err error
		data, err = o.enrich(ctx, s)
		if err != nil || !lead.HasData(data) {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (o *Orchestrator) enrich(ctx context.Context, s Subject) (*model.EnrichedData, error) {
	log := zap.L().With(
		zap.String("company", s.Company),
		zap.String("contact", s.Name),
		zap.String("phase", "enrich"),
	)

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	var found *LookupResult
	g, gctx := errgroup.WithContext(ctx)
	if o.opts.Lookup != nil {
		g.Go(func() error {
			res, err := o.opts.Lookup.Lookup(gctx, s)
			var svcErr *contactout.LookupServiceError
			switch {
			case errors.As(err, &svcErr):
				return svcErr
			case err != nil:
				log.Warn("enrich: lookup failed, continuing with AI result", zap.Error(err))
				return nil
			}
			found = res
			return nil
		})
	}

	var data *model.EnrichedData
	g.Go(func() error {
		var err error
		data, err = o.search(gctx, s, log)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrichmentFailed, err)
	}

	if found != nil {
		data.Emails = lead.MergeEmails(data.Emails, asInfos(found.Emails))
		data.Phones = lead.MergePhones(data.Phones, asInfos(found.Phones))
	}

	log.Info("enrich: complete",
		zap.Int("emails", len(data.Emails)),
		zap.Int("phones", len(data.Phones)),
		zap.Bool("linkedin", data.LinkedInURL != ""),
		zap.Bool("lookup", found != nil),
	)
	return data, nil
}

type loosePayload struct {
	Summary     json.RawMessage `json:"summary"`
	LinkedInURL json.RawMessage `json:"linkedinUrl"`
	Emails      json.RawMessage `json:"emails"`
	Phones      json.RawMessage `json:"phones"`
}

func (o *Orchestrator) search(ctx context.Context, s Subject, log *zap.Logger) (*model.EnrichedData, error) {
	res, err := o.searcher.Search(ctx, BuildPrompt(s))
	if err != nil {
		return nil, err
	}

	var p loosePayload
	if err := search.Decode(ctx, o.opts.Parser, o.opts.Repairer, res.Text, &p); err != nil {
		log.Warn("enrich: unparseable response",
			zap.Error(err),
			zap.String("raw", truncate(res.Text, maxLoggedRaw)),
		)
		return nil, err
	}

	data := &model.EnrichedData{
		Summary:     strings.TrimSpace(looseString(p.Summary)),
		LinkedInURL: strings.TrimSpace(looseString(p.LinkedInURL)),
		Emails:      lead.MergeEmails(looseInfos(p.Emails)),
		Phones:      lead.MergePhones(looseInfos(p.Phones)),
	}
	if model.IsNotFound(data.Summary) {
		data.Summary = ""
	}
	if model.IsNotFound(data.LinkedInURL) {
		data.LinkedInURL = ""
	}
	return data, nil
}

// looseString returns raw as a string, or "" for any other JSON type.
func looseString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// looseInfos decodes a candidate list. A non-array yields nothing. Each
// element may be {value, confidence} or a bare string; anything else is
// skipped.
func looseInfos(raw json.RawMessage) []model.EnrichedContactInfo {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	out := make([]model.EnrichedContactInfo, 0, len(items))
	for _, item := range items {
		var obj struct {
			Value      json.RawMessage `json:"value"`
			Confidence json.RawMessage `json:"confidence"`
		}
		if json.Unmarshal(item, &obj) == nil && len(obj.Value) > 0 {
			out = append(out, model.EnrichedContactInfo{
				Value:      looseString(obj.Value),
				Confidence: model.ParseConfidence(looseString(obj.Confidence)),
			})
			continue
		}
		if v := looseString(item); v != "" {
			out = append(out, model.EnrichedContactInfo{Value: v, Confidence: model.ConfidenceLow})
		}
	}
	return out
}

func asInfos(values []string) []model.EnrichedContactInfo {
	out := make([]model.EnrichedContactInfo, 0, len(values))
	for _, v := range values {
		out = append(out, model.EnrichedContactInfo{Value: v, Confidence: model.ConfidenceHigh})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
