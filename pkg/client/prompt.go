package client

import (
	"strings"
	"text/template"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

var promptTemplate = template.Must(template.New("owner").Parse(`You are an expert business investigator. Identify the owner, founder or CEO of the business below.

Business details:
  Business Name: {{.BusinessName}}
  Website: {{or .Website "N/A"}}
  Google Business Profile: {{or .ProfileURL "N/A"}}
  Phone: {{or .Phone "N/A"}}
  Email: {{or .Email "N/A"}}

How to investigate:
1. Use the search tool to look the business up on the web.
2. Check the official website ("About Us", "Team", "Leadership" pages), Google reviews that
   thank or mention an owner or manager by name, directories (LinkedIn, Yelp, BBB, Bizapedia)
   and social media bios.
3. When sources disagree, prefer website over LinkedIn over news over reviews.

Answer rules:
- Give the owner's first name and last name. Middle names belong in the last name
  ("John Von Doe" is first_name "John", last_name "Von Doe").
- If no owner can be identified, answer first_name "Not Found" and an empty last_name.
- source is the URL or a short description such as "Google Review".
- confidence is High (official website or LinkedIn owner profile), Medium (news or several
  directories) or Low (a single review or an inference).

Reply with JSON only:
` + "```json" + `
{"first_name": "First", "last_name": "Last (including middle)", "source": "URL or description", "confidence": "High|Medium|Low"}
` + "```" + `
`))

// buildPrompt renders the investigation prompt for one record.
func buildPrompt(r record.Record) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}
