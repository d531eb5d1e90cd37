package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/crm"
	"github.com/sells-group/lead-engine/internal/enrichment"
	"github.com/sells-group/lead-engine/internal/lead"
	"github.com/sells-group/lead-engine/internal/parse"
	"github.com/sells-group/lead-engine/internal/research"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/session"
	"github.com/sells-group/lead-engine/internal/store"
	anthropicpkg "github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/contactout"
	"github.com/sells-group/lead-engine/pkg/gemini"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

// leadEnv holds the orchestrators shared by the research and serve
// commands.
type leadEnv struct {
	Store      store.Store // nil when store.driver is none
	Research   *research.Orchestrator
	Enrichment *enrichment.Orchestrator
	CRM        *crm.Dispatcher // nil when no webhook is configured
	Batch      session.BatchOptions
}

// Close releases resources held by the environment.
func (e *leadEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode and builds every collaborator. Callers
// should defer env.Close().
func initEnv(ctx context.Context, mode string) (*leadEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	rec := store.NewRecorder(st)

	searcher, err := initSearcher(ctx)
	if err != nil {
		closeStore(st)
		return nil, err
	}

	tax := lead.DefaultTaxonomy()
	if cfg.Research.TaxonomyPath != "" {
		tax, err = lead.LoadTaxonomy(cfg.Research.TaxonomyPath)
		if err != nil {
			closeStore(st)
			return nil, err
		}
	}

	parser := parse.New(parse.Options{PreferFences: cfg.Research.StrictFences})
	repairer := initRepairer()

	env := &leadEnv{
		Store: st,
		Research: research.New(searcher, research.Options{
			Taxonomy: tax,
			Parser:   parser,
			Repairer: repairer,
			Timeout:  seconds(cfg.Research.RequestTimeoutSecs),
			Recorder: rec,
		}),
		Enrichment: enrichment.New(searcher, enrichment.Options{
			Parser:   parser,
			Repairer: repairer,
			Lookup:   initLookup(),
			Timeout:  seconds(cfg.Enrichment.RequestTimeoutSecs),
			Recorder: rec,
		}),
		Batch: session.BatchOptions{
			Workers:       cfg.Enrichment.Workers,
			RatePerSecond: cfg.Enrichment.RateLimitRPS,
		},
	}

	if cfg.CRM.WebhookURL != "" {
		env.CRM = crm.New(crm.Config{
			WebhookURL:      cfg.CRM.WebhookURL,
			TenantSubdomain: cfg.CRM.TenantSubdomain,
			Timeout:         seconds(cfg.CRM.TimeoutSecs),
			MaxAttempts:     cfg.CRM.MaxAttempts,
		}, crm.WithRecorder(rec))
	} else {
		zap.L().Debug("LEADS_CRM_WEBHOOK_URL not set, CRM dispatch disabled")
	}

	return env, nil
}

// initStore opens the run log. It returns a nil Store when the run log is
// disabled.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initSearcher builds the grounded search backend selected by ai.provider,
// wrapped with retries and a circuit breaker.
func initSearcher(ctx context.Context) (search.Searcher, error) {
	var base search.Searcher
	switch cfg.AI.Provider {
	case config.ProviderPerplexity:
		opts := []perplexity.Option{perplexity.WithModel(cfg.Perplexity.Model)}
		if cfg.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		base = search.NewPerplexity(perplexity.NewClient(cfg.Perplexity.Key, opts...))
	default:
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key,
			gemini.WithModel(cfg.Gemini.Model),
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
		)
		if err != nil {
			return nil, err
		}
		base = search.NewGemini(client)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Search.MaxAttempts

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.Search.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.Search.FailureThreshold
	}
	if cfg.Search.ResetTimeoutSecs > 0 {
		breakerCfg.ResetTimeout = seconds(cfg.Search.ResetTimeoutSecs)
	}
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("ai search circuit changed state",
			zap.String("provider", cfg.AI.Provider),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	zap.L().Info("ai search backend ready", zap.String("provider", cfg.AI.Provider))
	return search.Resilient(base, retry, resilience.NewCircuitBreaker(breakerCfg)), nil
}

// initRepairer returns nil unless ai.repair is enabled.
func initRepairer() search.Repairer {
	if !cfg.AI.Repair {
		return nil
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithMaxRetries(0))
	return search.NewAnthropicRepairer(client, cfg.Anthropic.RepairModel)
}

// initLookup returns nil unless contactout.enabled is set.
func initLookup() enrichment.Lookup {
	if !cfg.ContactOut.Enabled {
		return nil
	}
	return enrichment.ContactOut(newContactOut())
}

func newContactOut() contactout.Client {
	opts := []contactout.Option{contactout.WithRateLimit(cfg.ContactOut.RateLimitRPS)}
	if cfg.ContactOut.BaseURL != "" {
		opts = append(opts, contactout.WithBaseURL(cfg.ContactOut.BaseURL))
	}
	return contactout.NewClient(cfg.ContactOut.Key, opts...)
}

func closeStore(st store.Store) {
	if st != nil {
		_ = st.Close()
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
