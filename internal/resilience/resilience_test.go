package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("bad request"), want: false},
		{name: "marked", err: NewTransientError(errors.New("503"), 503), want: true},
		{name: "wrapped_marked", err: eris.Wrap(NewTransientError(errors.New("429"), 429), "gemini: generate"), want: true},
		{name: "conn_refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: true},
		{name: "message", err: errors.New("read tcp: connection reset by peer"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestForStatus(t *testing.T) {
	t.Parallel()

	base := errors.New("upstream")
	assert.Nil(t, ForStatus(nil, 500))
	assert.True(t, IsTransient(ForStatus(base, http.StatusTooManyRequests)))
	assert.True(t, IsTransient(ForStatus(base, http.StatusBadGateway)))
	assert.Same(t, base, ForStatus(base, http.StatusBadRequest))

	var te *TransientError
	require.ErrorAs(t, ForStatus(base, 503), &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.ErrorIs(t, te, base)
}

func TestDoVal_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	got, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal_StopsOnPermanent(t *testing.T) {
	t.Parallel()

	var calls int
	perm := errors.New("bad request")
	_, err := DoVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("busy"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastRetry(5), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return now }

	fail := func(context.Context) error { return NewTransientError(errors.New("down"), 503) }
	ok := func(context.Context) error { return nil }

	assert.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Error(t, cb.Execute(context.Background(), fail))
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), func(context.Context) error {
		t.Fatal("must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	require.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, CircuitClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("malformed") })
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestExecuteVal_NilBreaker(t *testing.T) {
	t.Parallel()

	got, err := ExecuteVal(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
