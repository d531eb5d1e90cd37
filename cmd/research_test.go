package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-engine/internal/crm"
	"github.com/sells-group/lead-engine/internal/enrichment"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/research"
	"github.com/sells-group/lead-engine/internal/search"
	"github.com/sells-group/lead-engine/internal/search/mocks"
	"github.com/sells-group/lead-engine/internal/session"
)

const acmeResearch = `{"overview":"Acme hauls freight.","contacts":[
 {"name":"Jane Doe","role":"Fleet Manager","email":"Not Found","phone":"Not Found","isPrimaryTarget":true},
 {"name":"John Roe","role":"Accountant","email":"john@acme.com","phone":"Not Found","isPrimaryTarget":false}
]}`

const janeEnrichment = `{"summary":"Runs the Acme fleet.","linkedinUrl":"https://linkedin.com/in/janedoe",
"emails":[{"value":"jane@acme.com","confidence":"high"}],"phones":[]}`

// setResearchFlags overrides the research flag globals for one test.
func setResearchFlags(t *testing.T, enrich string, dispatch bool) {
	t.Helper()
	prevEnrich, prevDispatch := researchEnrich, researchDispatch
	researchEnrich, researchDispatch = enrich, dispatch
	t.Cleanup(func() { researchEnrich, researchDispatch = prevEnrich, prevDispatch })
}

func testEnv(t *testing.T, m *mocks.MockSearcher) *leadEnv {
	t.Helper()
	return &leadEnv{
		Research:   research.New(m, research.Options{}),
		Enrichment: enrichment.New(m, enrichment.Options{}),
		Batch:      session.BatchOptions{Workers: 2},
	}
}

func TestCheckEnrichScope(t *testing.T) {
	for _, ok := range []string{"none", "primary", "all"} {
		assert.NoError(t, checkEnrichScope(ok))
	}
	assert.Error(t, checkEnrichScope("some"))
}

func TestResearchTargets(t *testing.T) {
	prevCompany, prevLocation, prevInput := researchCompany, researchLocation, researchInput
	t.Cleanup(func() { researchCompany, researchLocation, researchInput = prevCompany, prevLocation, prevInput })

	researchInput = ""
	researchCompany, researchLocation = "  Walmart ", " Bentonville "
	got, err := researchTargets()
	require.NoError(t, err)
	assert.Equal(t, []model.Company{{Name: "Walmart", Location: "Bentonville"}}, got)

	researchCompany = "   "
	_, err = researchTargets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), research.EmptyCompanyMessage)
}

func TestLoadCompanies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Walmart
  location: Bentonville, Arkansas
- name: "  "
- name: Acme
`), 0o644))

	got, err := loadCompanies(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Company{
		{Name: "Walmart", Location: "Bentonville, Arkansas"},
		{Name: "Acme"},
	}, got)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o644))
	_, err = loadCompanies(empty)
	assert.Error(t, err)

	_, err = loadCompanies(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestResearchOne_NoEnrichment(t *testing.T) {
	setResearchFlags(t, enrichNone, false)

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: acmeResearch}, nil).Once()

	rep := researchOne(context.Background(), testEnv(t, m), model.Company{Name: "Acme", Location: "Ohio"})
	assert.Empty(t, rep.Error)
	assert.Equal(t, "Acme", rep.Company)
	assert.Equal(t, "Ohio", rep.Location)
	assert.Equal(t, "Acme hauls freight.", rep.Overview)
	require.Len(t, rep.Leads, 2)
	assert.Nil(t, rep.Dispatch)
	for _, l := range rep.Leads {
		assert.Equal(t, model.EnrichmentUnset, l.EnrichmentStatus)
	}
}

func TestResearchOne_EnrichPrimary(t *testing.T) {
	setResearchFlags(t, enrichPrimary, false)

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.MatchedBy(func(p string) bool { return !strings.Contains(p, "site:linkedin.com/in") })).
		Return(&search.Result{Text: acmeResearch}, nil).Once()
	m.On("Search", mock.Anything, mock.MatchedBy(func(p string) bool { return strings.Contains(p, "Jane Doe") && strings.Contains(p, "site:linkedin.com/in") })).
		Return(&search.Result{Text: janeEnrichment}, nil).Once()

	rep := researchOne(context.Background(), testEnv(t, m), model.Company{Name: "Acme"})
	require.Len(t, rep.Leads, 2)

	jane := rep.Leads[0]
	assert.Equal(t, model.EnrichmentEnriched, jane.EnrichmentStatus)
	require.NotNil(t, jane.EnrichedData)
	assert.Equal(t, "https://linkedin.com/in/janedoe", jane.EnrichedData.LinkedInURL)
	assert.Equal(t, model.EnrichmentUnset, rep.Leads[1].EnrichmentStatus)
}

func TestResearchOne_Failure(t *testing.T) {
	setResearchFlags(t, enrichAll, false)

	m := mocks.NewMockSearcher(t)
	m.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("upstream down")).Once()

	rep := researchOne(context.Background(), testEnv(t, m), model.Company{Name: "Acme"})
	assert.Equal(t, research.UserMessage, rep.Error)
	assert.Empty(t, rep.Leads)
	assert.NotNil(t, rep.Sources)
}

func TestResearchOne_Dispatch(t *testing.T) {
	setResearchFlags(t, enrichNone, true)

	tests := []struct {
		name   string
		status int
		want   session.DispatchStatus
	}{
		{name: "accepted", status: http.StatusOK, want: session.DispatchSuccess},
		{name: "rejected", status: http.StatusInternalServerError, want: session.DispatchError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu  sync.Mutex
				got []crm.Payload
			)
			hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var p crm.Payload
				_ = json.NewDecoder(r.Body).Decode(&p)
				mu.Lock()
				got = append(got, p)
				mu.Unlock()
				w.WriteHeader(tt.status)
			}))
			defer hook.Close()

			m := mocks.NewMockSearcher(t)
			m.On("Search", mock.Anything, mock.Anything).Return(&search.Result{Text: acmeResearch}, nil).Once()

			env := testEnv(t, m)
			env.CRM = crm.New(crm.Config{WebhookURL: hook.URL})

			rep := researchOne(context.Background(), env, model.Company{Name: "Acme"})
			require.NotNil(t, rep.Dispatch)
			assert.Equal(t, tt.want, rep.Dispatch.Status)
			if tt.want == session.DispatchSuccess {
				mu.Lock()
				defer mu.Unlock()
				assert.Len(t, got, 2)
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	rep := researchReport{
		Company:  "Acme",
		Overview: "Acme hauls freight.",
		Leads:    []model.Lead{{Name: "Jane Doe", Role: "Fleet Manager", IsPrimaryTarget: true}},
		Sources:  []model.GroundingChunk{},
	}

	var jsonBuf bytes.Buffer
	require.NoError(t, writeOutput(&jsonBuf, "json", rep))
	var decoded researchReport
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	assert.Equal(t, rep, decoded)

	var yamlBuf bytes.Buffer
	require.NoError(t, writeOutput(&yamlBuf, "yaml", rep))
	assert.Contains(t, yamlBuf.String(), "company: Acme")
	assert.Contains(t, yamlBuf.String(), "is_primary_target: true")
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, "Acme hauls freight.", fromYAML["overview"])
}
