package lead

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func decodeContacts(t *testing.T, body string) []model.RawContact {
	t.Helper()
	var raw []model.RawContact
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw
}

func names(leads []model.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.Name
	}
	return out
}

func TestNormalize_FiltersAndOrders(t *testing.T) {
	t.Parallel()

	raw := decodeContacts(t, `[
		{"name":"Peter Jones","role":"Marketing Coordinator","email":"Not Found","phone":"Not Found","isPrimaryTarget":false},
		{"name":"Jane Doe","role":"Fleet Manager","email":"Not Found","phone":"Not Found","isPrimaryTarget":true},
		{"name":"No Name","role":"Not Found","email":"Not Found","phone":"Not Found"},
		{"name":"not found","role":"CEO"},
		{"role":"CFO","email":"cfo@example.com"},
		{"name":"Sam Lee","email":"sam@example.com","isPrimaryTarget":false},
		{"name":"Ann Bell","role":"Director of Logistics","isPrimaryTarget":true}
	]`)

	leads := Normalize(raw, DefaultTaxonomy())

	assert.Equal(t, []string{"Jane Doe", "Ann Bell", "Peter Jones", "Sam Lee"}, names(leads))
	assert.Equal(t, "", leads[0].Email, "sentinel becomes empty")
	assert.Equal(t, "", leads[0].Phone)
	assert.True(t, leads[0].IsPrimaryTarget)
	assert.False(t, leads[2].IsPrimaryTarget)
}

func TestNormalize_WalmartScenario(t *testing.T) {
	t.Parallel()

	raw := decodeContacts(t, `[
		{"name":"Jane Doe","role":"Fleet Manager","email":"Not Found","phone":"Not Found","isPrimaryTarget":true},
		{"name":"No Name","role":"Not Found","email":"Not Found","phone":"Not Found"}
	]`)

	leads := Normalize(raw, DefaultTaxonomy())
	require.Len(t, leads, 1)
	assert.Equal(t, "Jane Doe", leads[0].Name)
	assert.Equal(t, "Fleet Manager", leads[0].Role)
	assert.True(t, leads[0].IsPrimaryTarget)
}

func TestNormalize_DuplicatesPassThrough(t *testing.T) {
	t.Parallel()

	raw := decodeContacts(t, `[
		{"name":"Jane Doe","role":"Buyer","isPrimaryTarget":true},
		{"name":"Jane Doe","role":"Buyer","isPrimaryTarget":true}
	]`)
	assert.Len(t, Normalize(raw, DefaultTaxonomy()), 2)
}

func TestNormalize_TaxonomyFallback(t *testing.T) {
	t.Parallel()

	raw := decodeContacts(t, `[
		{"name":"A","role":"VP Marketing"},
		{"name":"B","role":"Facilities Maintenance Lead"},
		{"name":"C","role":"Fleet Manager","isPrimaryTarget":false},
		{"name":"D","role":"EHS Coordinator"}
	]`)

	leads := Normalize(raw, DefaultTaxonomy())
	assert.Equal(t, []string{"B", "D", "A", "C"}, names(leads))
	assert.False(t, leads[3].IsPrimaryTarget, "explicit flag wins over taxonomy")
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	raw := decodeContacts(t, `[
		{"name":"P","role":"Sales","isPrimaryTarget":false},
		{"name":"Q","role":"Not Found","email":"q@example.com","isPrimaryTarget":true},
		{"name":"R","role":"Not Found","email":"Not Found","phone":"Not Found","isPrimaryTarget":true},
		{"name":" S ","phone":"555-0100"}
	]`)

	once := Normalize(raw, DefaultTaxonomy())
	twice := Normalize(FromLeads(once), DefaultTaxonomy())
	assert.Equal(t, once, twice)
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	leads := Normalize(nil, DefaultTaxonomy())
	assert.NotNil(t, leads)
	assert.Empty(t, leads)
}

func TestTaxonomy_Matches(t *testing.T) {
	t.Parallel()

	tax := DefaultTaxonomy()
	tests := []struct {
		role string
		want bool
	}{
		{"Fleet Manager", true},
		{"Director, Supply-Chain", true},
		{"Purchasing Agent", true},
		{"Environmental Health & Safety Manager", true},
		{"Heavy Equipment Operations Supervisor", true},
		{"Chief Marketing Officer", false},
		{"Fleetwood Specialist", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tax.Matches(tt.role))
		})
	}
}

func TestTaxonomy_PromptList(t *testing.T) {
	t.Parallel()

	tax := Taxonomy{Areas: []Area{{Name: "Fleet"}, {Name: "Logistics"}}}
	assert.Equal(t, "  - Fleet\n  - Logistics", tax.PromptList("  "))
}

func TestLoadTaxonomy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`taxonomy:
  - area: Fleet Management
    keywords: [fleet, vehicles]
  - area: Janitorial
    keywords: [custodial]
`), 0o644))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	require.Len(t, tax.Areas, 2)
	assert.Equal(t, "Janitorial", tax.Areas[1].Name)
	assert.True(t, tax.Matches("Custodial Supervisor"))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("taxonomy: []\n"), 0o644))
	_, err = LoadTaxonomy(empty)
	assert.Error(t, err)

	_, err = LoadTaxonomy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
