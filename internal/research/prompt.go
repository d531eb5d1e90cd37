package research

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-engine/internal/lead"
)

const promptExample = `{
      "overview": "ExampleCorp is a leading provider of logistics solutions, recently recognized for its innovative supply chain optimization software. They just announced a new partnership with Global Shipping Inc. to expand their international reach, a great point of congratulations. Their focus on sustainability presents an opportunity to discuss eco-friendly fleet maintenance solutions.",
      "contacts": [
        {
          "name": "John Doe",
          "role": "Fleet Manager",
          "email": "john.doe@examplecorp.com",
          "phone": "+1-555-123-4567",
          "isPrimaryTarget": true
        },
        {
          "name": "Jane Smith",
          "role": "Director of Logistics",
          "email": "jane.smith@examplecorp.com",
          "phone": "Not Found",
          "isPrimaryTarget": true
        },
        {
          "name": "Peter Jones",
          "role": "Marketing Coordinator",
          "email": "peter.jones@examplecorp.com",
          "phone": "Not Found",
          "isPrimaryTarget": false
        }
      ]
    }`

// BuildPrompt renders the company-research instruction. location may be
// empty.
func BuildPrompt(company, location string, tax lead.Taxonomy) string {
	var b strings.Builder

	b.WriteString(`You are a highly advanced corporate research AI specializing in lead generation.
Your task is to conduct deep research on the company provided, using your grounded search capabilities to find publicly available information.

`)
	fmt.Fprintf(&b, "Company: %q\n", company)
	if location != "" {
		fmt.Fprintf(&b, "Location Focus: %q\n", location)
	}

	b.WriteString(`
Your goal is to provide a comprehensive research document in a structured JSON format. The JSON object must have two top-level keys: "overview" and "contacts".

1. **overview**: A concise but insightful summary (2-3 paragraphs) about the company. Include any recent news, potential talking points for a sales call, or reasons for congratulations (e.g., recent funding, new product launch, awards). This should provide actionable intelligence.

2. **contacts**: A JSON array of all publicly identifiable employees. For each employee, find:
    - Full Name
    - Job Title/Role
    - Business Email Address
    - Business Phone Number
    - A boolean flag "isPrimaryTarget"

The "isPrimaryTarget" flag must be set to ` + "`true`" + ` if the employee's role is related to any of the following areas, otherwise set it to ` + "`false`" + `:
`)
	b.WriteString(tax.PromptList(""))
	b.WriteString(`

**CRITICAL RULES FOR CONTACTS:**
- Each contact object in the array MUST have the keys: "name", "role", "email", "phone", and "isPrimaryTarget".
- If a specific piece of information (like a phone or email) cannot be found, use the string value "Not Found".
- Only include a contact if you can find their name AND at least one of the following: their role, email, or phone number. Do not include contacts where you only have a name.

**OUTPUT FORMAT:**
Your entire response must be ONLY the raw JSON data. Do not include any text, explanation, or markdown formatting (like ` + "```json" + `) before or after the JSON.

Example output format:
    `)
	b.WriteString(promptExample)
	b.WriteByte('\n')
	return b.String()
}
