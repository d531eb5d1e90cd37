package lead

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Area is one target business function. Name is rendered verbatim into
// the research prompt; Keywords classify roles when the AI omits the
// primary-target flag.
type Area struct {
	Name     string   `yaml:"area"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is the ordered list of primary-target areas.
type Taxonomy struct {
	Areas []Area `yaml:"taxonomy"`
}

// DefaultTaxonomy returns the built-in primary-target areas.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Areas: []Area{
		{
			Name:     "Fleet Management / Fleet Vehicles",
			Keywords: []string{"fleet"},
		},
		{
			Name:     "Procurement / Purchasing (especially for cleaning supplies, detergents, industrial equipment, pressure washers)",
			Keywords: []string{"procurement", "purchasing", "buyer", "sourcing"},
		},
		{
			Name:     "Maintenance Management / Facilities Management",
			Keywords: []string{"maintenance", "facilities", "facility"},
		},
		{
			Name:     "Logistics / Supply Chain Management",
			Keywords: []string{"logistics", "supply chain", "distribution", "transportation"},
		},
		{
			Name:     "Operations Management (related to heavy equipment)",
			Keywords: []string{"heavy equipment", "equipment operations"},
		},
		{
			Name:     "EHS (Environmental, Health, and Safety) managers who might handle industrial cleaning.",
			Keywords: []string{"ehs", "hse", "environmental", "health and safety", "safety"},
		},
	}}
}

// LoadTaxonomy reads a taxonomy from a YAML file of the form:
//
//	taxonomy:
//	  - area: Fleet Management / Fleet Vehicles
//	    keywords: [fleet]
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, eris.Wrapf(err, "taxonomy: read %s", path)
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return Taxonomy{}, eris.Wrapf(err, "taxonomy: parse %s", path)
	}
	if len(tax.Areas) == 0 {
		return Taxonomy{}, eris.Errorf("taxonomy: %s defines no areas", path)
	}
	for i, a := range tax.Areas {
		if strings.TrimSpace(a.Name) == "" {
			return Taxonomy{}, eris.Errorf("taxonomy: area %d has no name", i)
		}
	}
	return tax, nil
}

// Matches reports whether a role belongs to any area, by whole-word
// keyword match.
func (t Taxonomy) Matches(role string) bool {
	if strings.TrimSpace(role) == "" {
		return false
	}
	padded := " " + wordsOnly(role) + " "
	for _, a := range t.Areas {
		for _, kw := range a.Keywords {
			kw = wordsOnly(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(padded, " "+kw+" ") {
				return true
			}
		}
	}
	return false
}

// PromptList renders the areas as a markdown bullet list.
func (t Taxonomy) PromptList(indent string) string {
	var b strings.Builder
	for i, a := range t.Areas {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(a.Name)
	}
	return b.String()
}

// wordsOnly case-folds s and collapses every run of non-alphanumerics into
// a single space.
func wordsOnly(s string) string {
	folded := cases.Fold().String(s)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
