package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/parse"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/search/mocks"
	"github.com/sells-group/lead-engine/pkg/contactout"
)

type lookupFunc func(ctx context.Context, s Subject) (*LookupResult, error)

func (f lookupFunc) Lookup(ctx context.Context, s Subject) (*LookupResult, error) { return f(ctx, s) }

var jane = Subject{Name: "Jane Doe", Role: "Fleet Manager", Company: "Acme"}

func TestEnrich_Coerces(t *testing.T) {
	t.Parallel()

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: `{
		"summary": "Runs the fleet.",
		"linkedinUrl": "Not Found",
		"emails": [
			{"value": "jdoe@acme.com", "confidence": "MEDIUM"},
			{"value": "Not Found", "confidence": "high"},
			{"value": "jane.doe@acme.com", "confidence": "high"},
			{"value": "j***@acme.com", "confidence": "high"}
		],
		"phones": "none"
	}`}, nil).Once()

	data, err := New(m, Options{}).Enrich(context.Background(), jane)
	require.NoError(t, err)

	assert.Equal(t, "Runs the fleet.", data.Summary)
	assert.Empty(t, data.LinkedInURL)
	assert.Equal(t, []model.EnrichedContactInfo{
		{Value: "jane.doe@acme.com", Confidence: model.ConfidenceHigh},
		{Value: "jdoe@acme.com", Confidence: model.ConfidenceMedium},
	}, data.Emails)
	assert.Empty(t, data.Phones)
}

func TestEnrich_MissingFields(t *testing.T) {
	t.Parallel()

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: `{"summary": 42}`}, nil).Once()

	data, err := New(m, Options{}).Enrich(context.Background(), jane)
	require.NoError(t, err)
	assert.Empty(t, data.Summary)
	assert.Empty(t, data.LinkedInURL)
	assert.Empty(t, data.Emails)
	assert.Empty(t, data.Phones)
}

func TestEnrich_ReconstructsMaskedEmails(t *testing.T) {
	t.Parallel()

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: `{
		"emails": [
			{"value": "ja**@acme.com", "confidence": "high"},
			{"value": "**ne@acme.com", "confidence": "high"}
		]
	}`}, nil).Once()

	data, err := New(m, Options{}).Enrich(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, []model.EnrichedContactInfo{
		{Value: "jane@acme.com", Confidence: model.ConfidenceLow},
	}, data.Emails)
}

func TestEnrich_MergesLookup(t *testing.T) {
	t.Parallel()

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: `{
		"emails": [{"value": "Jane.Doe@acme.com", "confidence": "low"}],
		"phones": [{"value": "(555) 123-4567", "confidence": "medium"}]
	}`}, nil).Once()

	lookup := lookupFunc(func(_ context.Context, s Subject) (*LookupResult, error) {
		assert.Equal(t, jane, s)
		return &LookupResult{
			Emails: []string{"jane.doe@acme.com", "jane@gmail.com"},
			Phones: []string{"+1 555-987-6543"},
		}, nil
	})

	data, err := New(m, Options{Lookup: lookup}).Enrich(context.Background(), jane)
	require.NoError(t, err)

	assert.Equal(t, []model.EnrichedContactInfo{
		{Value: "Jane.Doe@acme.com", Confidence: model.ConfidenceHigh},
		{Value: "jane@gmail.com", Confidence: model.ConfidenceHigh},
	}, data.Emails)
	assert.Equal(t, []model.EnrichedContactInfo{
		{Value: "+1 555-987-6543", Confidence: model.ConfidenceHigh},
		{Value: "(555) 123-4567", Confidence: model.ConfidenceMedium},
	}, data.Phones)
}

func TestEnrich_LookupServiceErrorFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "empty_ai_result", text: `{"summary":"","emails":[],"phones":[]}`},
		{name: "ai_found_data", text: `{"summary":"ok","emails":[{"value":"jane@acme.com","confidence":"high"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := mocks.NewMockSearcher(t)
			m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: tt.text}, nil).Maybe()

			lookup := lookupFunc(func(context.Context, Subject) (*LookupResult, error) {
				return nil, &contactout.LookupServiceError{StatusCode: http.StatusInternalServerError, Body: "upstream down"}
			})

			data, err := New(m, Options{Lookup: lookup}).Enrich(context.Background(), jane)
			assert.Nil(t, data)
			assert.ErrorIs(t, err, ErrEnrichmentFailed)

			var svcErr *contactout.LookupServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
			assert.Contains(t, err.Error(), "upstream down")
		})
	}
}

func TestEnrich_LookupTransportErrorIgnored(t *testing.T) {
	t.Parallel()

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: `{
		"summary": "ok",
		"emails": [{"value": "jane@acme.com", "confidence": "high"}]
	}`}, nil).Once()

	lookup := lookupFunc(func(context.Context, Subject) (*LookupResult, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	data, err := New(m, Options{Lookup: lookup}).Enrich(context.Background(), jane)
	require.NoError(t, err)
	assert.Equal(t, "ok", data.Summary)
	require.Len(t, data.Emails, 1)
}

func TestEnrich_Failures(t *testing.T) {
	t.Parallel()

	quota := errors.New("quota exceeded for this project")

	tests := []struct {
		name      string
		text      string
		err       error
		wantCause error
	}{
		{name: "transport", err: quota, wantCause: quota},
		{name: "malformed", text: "Sorry, I found nothing.", wantCause: parse.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := mocks.NewMockSearcher(t)
			if tt.err != nil {
				m.On("Search", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			} else {
				m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: tt.text}, nil).Once()
			}

			data, err := New(m, Options{}).Enrich(context.Background(), jane)
			assert.Nil(t, data)
			assert.ErrorIs(t, err, ErrEnrichmentFailed)
			assert.ErrorIs(t, err, tt.wantCause)
		})
	}

	t.Run("message_preserved", func(t *testing.T) {
		t.Parallel()
		m := mocks.NewMockSearcher(t)
		m.On("Search", mock.Anything, mock.Anything).Return(nil, quota).Once()

		_, err := New(m, Options{}).Enrich(context.Background(), jane)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded for this project")
	})
}

func TestLooseInfos(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []model.EnrichedContactInfo
	}{
		{name: "absent", raw: ``, want: nil},
		{name: "object", raw: `{"value":"a@b.com"}`, want: nil},
		{name: "null", raw: `null`, want: nil},
		{
			name: "mixed",
			raw:  `[{"value":"a@b.com","confidence":"High"}, "c@d.com", 7, {"confidence":"high"}]`,
			want: []model.EnrichedContactInfo{
				{Value: "a@b.com", Confidence: model.ConfidenceHigh},
				{Value: "c@d.com", Confidence: model.ConfidenceLow},
			},
		},
		{
			name: "unknown_confidence",
			raw:  `[{"value":"a@b.com","confidence":"certain"}]`,
			want: []model.EnrichedContactInfo{{Value: "a@b.com", Confidence: model.ConfidenceLow}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := looseInfos(json.RawMessage(tt.raw))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt(jane)
	assert.Contains(t, p, `"Jane Doe" "Acme" email`)
	assert.Contains(t, p, `"Jane Doe" "Acme" phone`)
	assert.Contains(t, p, `"Jane Doe" "Fleet Manager" "Acme" contact`)
	assert.Contains(t, p, `site:linkedin.com/in "Jane Doe" "Acme"`)
	assert.Contains(t, p, `"linkedinUrl"`)
	assert.Contains(t, p, "snippet")

	p = BuildPrompt(Subject{Name: "Jane Doe", Role: "Not Found", Company: "Acme"})
	assert.NotContains(t, p, "contact\n")
	assert.NotContains(t, p, "Role:")
	assert.Len(t, Queries(Subject{Name: "Jane Doe", Company: "Acme"}), 3)
}

func TestContactOutLookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["name"] == "Nobody" {
			_, _ = w.Write([]byte(`{"profiles":[]}`))
			return
		}
		assert.Equal(t, []any{"Fleet Manager"}, body["job_title"])
		_, _ = w.Write([]byte(`{"profiles":{"p1":{"contact_info":{"emails":["jane@acme.com"],"phones":["555-0100"]}}}}`))
	}))
	defer srv.Close()

	l := ContactOut(contactout.NewClient("tok", contactout.WithBaseURL(srv.URL)))

	res, err := l.Lookup(context.Background(), jane)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"jane@acme.com"}, res.Emails)
	assert.Equal(t, []string{"555-0100"}, res.Phones)

	res, err = l.Lookup(context.Background(), Subject{Name: "Nobody"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 5))
	assert.True(t, strings.HasPrefix(truncate("abcdef", 3), "abc"))
}
