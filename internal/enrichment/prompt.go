package enrichment

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

// Queries returns the fixed search queries for one contact. The role
// query is skipped when the role is unknown.
func Queries(s Subject) []string {
	q := []string{
		fmt.Sprintf("%q %q email", s.Name, s.Company),
		fmt.Sprintf("%q %q phone", s.Name, s.Company),
	}
	if !model.IsNotFound(s.Role) {
		q = append(q, fmt.Sprintf("%q %q %q contact", s.Name, s.Role, s.Company))
	}
	q = append(q, fmt.Sprintf("site:linkedin.com/in %q %q", s.Name, s.Company))
	return q
}

// BuildPrompt renders the per-contact enrichment instruction.
func BuildPrompt(s Subject) string {
	var b strings.Builder

	b.WriteString("You are an expert contact-data researcher. Find professional contact details for one person using grounded web search.\n\n")
	fmt.Fprintf(&b, "Name: %q\n", s.Name)
	if !model.IsNotFound(s.Role) {
		fmt.Fprintf(&b, "Role: %q\n", s.Role)
	}
	fmt.Fprintf(&b, "Company: %q\n\n", s.Company)

	b.WriteString("Run each of these searches:\n")
	for _, q := range Queries(s) {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteByte('\n')
	}

	b.WriteString(`
Read the search result snippets and titles, not just the links. Contact data often appears only in the snippet text.

Reconciling partial values:
- Some sources show masked values such as "j***@acme.com" or "555-xxx-1234". When several masked values for the same field line up and together reveal every character without contradiction, combine them into one complete value and give it confidence "low".
- A value you infer from a pattern (for example the company's email format) but never saw written out gets confidence "medium".
- Only a value you saw complete and unmasked in a single source gets confidence "high".
- Never output a value that still contains masking characters.

**OUTPUT FORMAT:**
Respond with ONLY a JSON object, no prose and no markdown, with exactly these keys:
{
  "summary": "2-3 sentence professional summary, or empty string",
  "linkedinUrl": "profile URL or \"Not Found\"",
  "emails": [{"value": "name@company.com", "confidence": "high"}],
  "phones": [{"value": "+1-555-123-4567", "confidence": "medium"}]
}
Use empty arrays when nothing is found.
`)
	return b.String()
}
