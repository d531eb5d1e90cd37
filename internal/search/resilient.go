package search

import (
	"context"

	"github.com/sells-group/lead-engine/internal/resilience"
)

type resilient struct {
	next    Searcher
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// Resilient wraps next with transient-error retries and an optional
// circuit breaker. The breaker sees every attempt, so a run of retries
// against a dead upstream counts toward opening it.
func Resilient(next Searcher, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) Searcher {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("ai_search", "search")
	}
	return &resilient{next: next, retry: retry, breaker: breaker}
}

func (r *resilient) Search(ctx context.Context, prompt string) (*Result, error) {
	return resilience.DoVal(ctx, r.retry, func(ctx context.Context) (*Result, error) {
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*Result, error) {
			return r.next.Search(ctx, prompt)
		})
	})
}
