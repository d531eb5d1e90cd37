// Package research runs the company-research query: prompt, grounded
// search, parse, normalize.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/parse"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/store"
)

var (
	// ErrResearchFailed wraps any transport or parse failure. No partial
	// result accompanies it. Failures are joined as "%w: %w" rather than
	// eris-wrapped so the category and the cause both stay matchable.
	ErrResearchFailed = errors.New("research failed")

	// ErrEmptyCompany rejects a query with no company name or website.
	ErrEmptyCompany = errors.New("research: company name or website is required")
)

const (
	// UserMessage is what end users see for any research failure.
	UserMessage = "Failed to fetch or parse research data. The AI may have returned an unexpected format. Please try refining your query."

	// EmptyCompanyMessage is what end users see for ErrEmptyCompany.
	EmptyCompanyMessage = "Please enter a company name or website."

	// DefaultOverview replaces an empty overview.
	DefaultOverview = "No overview provided."

	maxLoggedRaw = 4 * 1024
)

// Query is one research request.
type Query struct {
	Company  string `json:"company"`
	Location string `json:"location"`
}

// Options configures an Orchestrator. Zero values are usable.
type Options struct {
	Taxonomy lead.Taxonomy
	Parser   *parse.Parser
	Repairer search.Repairer
	// Timeout bounds the search call. Zero means no extra bound.
	Timeout time.Duration
	// Recorder, when set, logs each run.
	Recorder *store.Recorder
}

// Orchestrator builds research prompts and assembles results.
type Orchestrator struct {
	searcher search.Searcher
	opts     Options
}

// New creates an Orchestrator.
func New(searcher search.Searcher, opts Options) *Orchestrator {
	if len(opts.Taxonomy.Areas) == 0 {
		opts.Taxonomy = lead.DefaultTaxonomy()
	}
	if opts.Parser == nil {
		opts.Parser = parse.New(parse.Options{})
	}
	return &Orchestrator{searcher: searcher, opts: opts}
}

// Run researches one company. The result is complete or absent: overview,
// leads and sources are never returned partially.
func (o *Orchestrator) Run(ctx context.Context, q Query) (*model.ResearchResult, error) {
	company := strings.TrimSpace(q.Company)
	location := strings.TrimSpace(q.Location)
	if company == "" {
		return nil, ErrEmptyCompany
	}

	var out *model.ResearchResult
	err := o.opts.Recorder.Track(ctx, model.RunKindResearch, company, func(ctx context.Context) (int, error) {
		var err error
		out, err = o.run(ctx, company, location)
		if err != nil {
			return 0, err
		}
		return len(out.Leads), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, company, location string) (*model.ResearchResult, error) {
	log := zap.L().With(zap.String("company", company), zap.String("phase", "research"))
	start := time.Now()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	res, err := o.searcher.Search(ctx, BuildPrompt(company, location, o.opts.Taxonomy))
	if err != nil {
		log.Error("research: search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrResearchFailed, err)
	}

	var payload struct {
		Overview string             `json:"overview"`
		Contacts []model.RawContact `json:"contacts"`
	}
	if err := search.Decode(ctx, o.opts.Parser, o.opts.Repairer, res.Text, &payload); err != nil {
		log.Warn("research: unparseable response",
			zap.Error(err),
			zap.String("raw", truncate(res.Text, maxLoggedRaw)),
		)
		return nil, fmt.Errorf("%w: %w", ErrResearchFailed, err)
	}

	out := &model.ResearchResult{
		Overview: payload.Overview,
		Leads:    lead.Normalize(payload.Contacts, o.opts.Taxonomy),
		Sources:  res.Sources,
	}
	if strings.TrimSpace(out.Overview) == "" {
		out.Overview = DefaultOverview
	}
	if out.Sources == nil {
		out.Sources = []model.GroundingChunk{}
	}

	log.Info("research: complete",
		zap.Int("contacts", len(payload.Contacts)),
		zap.Int("leads", len(out.Leads)),
		zap.Int("sources", len(out.Sources)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
