package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validation modes, one per command that needs credentials.
const (
	ModeResearch = "research"
	ModeDispatch = "dispatch"
	ModeLookup   = "lookup"
	ModeServe    = "serve"
	ModeRuns     = "runs"
)

const redacted = "[REDACTED]"

// Validate checks that everything the given mode needs is present. All
// problems are reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case ModeResearch:
		errs = append(errs, c.validateAI()...)
	case ModeDispatch:
		if c.CRM.WebhookURL == "" {
			errs = append(errs, "crm.webhook_url is required")
		}
	case ModeLookup:
		if c.ContactOut.Key == "" {
			errs = append(errs, "contactout.key is required")
		}
	case ModeServe:
		errs = append(errs, c.validateAI()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case ModeRuns:
		if c.Store.Driver == "" || c.Store.Driver == "none" {
			errs = append(errs, "store.driver must be sqlite or postgres to list runs")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateCommon()...)
	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s:\n  - %s", mode, strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateAI() []string {
	var errs []string
	switch c.AI.Provider {
	case ProviderGemini:
		if c.Gemini.Key == "" {
			errs = append(errs, "gemini.key is required when ai.provider is gemini")
		}
	case ProviderPerplexity:
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required when ai.provider is perplexity")
		}
	default:
		errs = append(errs, fmt.Sprintf("ai.provider must be %s or %s, got %q", ProviderGemini, ProviderPerplexity, c.AI.Provider))
	}
	if c.AI.Repair && c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required when ai.repair is enabled")
	}
	if c.ContactOut.Enabled && c.ContactOut.Key == "" {
		errs = append(errs, "contactout.key is required when contactout.enabled is true")
	}
	return errs
}

func (c *Config) validateCommon() []string {
	var errs []string
	if c.Enrichment.Workers < 1 || c.Enrichment.Workers > 32 {
		errs = append(errs, "enrichment.workers must be between 1 and 32")
	}
	if c.Enrichment.RateLimitRPS < 0 {
		errs = append(errs, "enrichment.rate_limit_rps must be >= 0")
	}
	if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if c.Monitoring.Enabled && (c.Store.Driver == "" || c.Store.Driver == "none") {
		errs = append(errs, "monitoring.enabled requires store.driver sqlite or postgres")
	}
	switch c.Store.Driver {
	case "", "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver "+c.Store.Driver)
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be none, sqlite or postgres, got %q", c.Store.Driver))
	}
	return errs
}

// Redact replaces every configured secret in s. Use it on error text
// that may echo a request URL or header.
func (c *Config) Redact(s string) string {
	for _, secret := range []string{
		c.Gemini.Key,
		c.Perplexity.Key,
		c.Anthropic.Key,
		c.ContactOut.Key,
	} {
		if len(secret) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}
