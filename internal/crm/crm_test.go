package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/resilience"
)

func TestBuildPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lead model.Lead
		want Payload
	}{
		{
			name: "enriched_values_win",
			lead: model.Lead{
				Name: "Jane Doe", Role: "Fleet Manager", Email: "jane@old.com", Phone: "555-0000",
				EnrichedData: &model.EnrichedData{
					Summary:     "Runs the fleet.",
					LinkedInURL: "https://linkedin.com/in/jane",
					Emails: []model.EnrichedContactInfo{
						{Value: "jane@acme.com", Confidence: model.ConfidenceHigh},
						{Value: "j.doe@acme.com", Confidence: model.ConfidenceLow},
					},
					Phones: []model.EnrichedContactInfo{{Value: "555-0100", Confidence: model.ConfidenceMedium}},
				},
			},
			want: Payload{
				Name: "Jane Doe", Email: "jane@acme.com", Phone: "555-0100", JobTitle: "Fleet Manager",
				CustomField1: "https://linkedin.com/in/jane", CustomField2: "Runs the fleet.",
				CompanyOverview: "ov", TenantSubdomain: "sells",
			},
		},
		{
			name: "falls_back_to_lead_fields",
			lead: model.Lead{Name: "John", Role: "Buyer", Email: "john@acme.com", EnrichedData: &model.EnrichedData{Summary: "x"}},
			want: Payload{
				Name: "John", Email: "john@acme.com", JobTitle: "Buyer", CustomField2: "x",
				CompanyOverview: "ov", TenantSubdomain: "sells",
			},
		},
		{
			name: "sentinel_fields_empty",
			lead: model.Lead{Name: "Jill", Role: "CFO", Email: "Not Found", Phone: "not found"},
			want: Payload{Name: "Jill", JobTitle: "CFO", CompanyOverview: "ov", TenantSubdomain: "sells"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildPayload(tt.lead, "ov", DefaultTenant))
		})
	}
}

func TestDispatch_Success(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []Payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Acme Corp", r.Header.Get("x-company-name"))

		var p Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := New(Config{WebhookURL: srv.URL, TenantSubdomain: "acme-tenant"})
	leads := []model.Lead{{Name: "Jane", Role: "CEO"}, {Name: "John", Role: "CFO"}}

	require.NoError(t, d.Dispatch(context.Background(), "Acme Corp", "ov", leads))

	require.Len(t, received, 2)
	names := []string{received[0].Name, received[1].Name}
	assert.ElementsMatch(t, []string{"Jane", "John"}, names)
	assert.Equal(t, "acme-tenant", received[0].TenantSubdomain)
	assert.Equal(t, "ov", received[0].CompanyOverview)
}

func TestDispatch_OneRejectionFailsBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p.Name == "John" {
			http.Error(w, "duplicate contact", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(Config{WebhookURL: srv.URL})
	leads := []model.Lead{{Name: "Jane", Role: "CEO"}, {Name: "John", Role: "CFO"}, {Name: "Jill", Role: "COO"}}

	err := d.Dispatch(context.Background(), "Acme", "ov", leads)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatchFailed)

	var lde *LeadDispatchError
	require.True(t, errors.As(err, &lde))
	assert.Equal(t, "John", lde.Lead)
	assert.Equal(t, http.StatusInternalServerError, lde.StatusCode)
	assert.Contains(t, err.Error(), "duplicate contact")
}

func TestDispatch_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(Config{WebhookURL: srv.URL, MaxAttempts: 3},
		WithRetryConfig(resilience.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}))

	require.NoError(t, d.Dispatch(context.Background(), "Acme", "", []model.Lead{{Name: "Jane", Role: "CEO"}}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatch_NoRetryByDefault(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(Config{WebhookURL: srv.URL}).Dispatch(context.Background(), "Acme", "", []model.Lead{{Name: "Jane", Role: "CEO"}})
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_EmptyAndUnconfigured(t *testing.T) {
	t.Parallel()

	assert.NoError(t, New(Config{}).Dispatch(context.Background(), "Acme", "", nil))

	err := New(Config{}).Dispatch(context.Background(), "Acme", "", []model.Lead{{Name: "Jane"}})
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestLeadDispatchError_EmptyBody(t *testing.T) {
	t.Parallel()

	err := &LeadDispatchError{Lead: "Jane", StatusCode: http.StatusNotFound}
	assert.Equal(t, `lead "Jane" rejected with status 404: Not Found`, err.Error())
}
