package enrichment

import (
	"context"

	"github.com/sells-group/lead-engine/pkg/contactout"
)

// Lookup fetches revealed contact details from a contact database.
type Lookup interface {
	Lookup(ctx context.Context, s Subject) (*LookupResult, error)
}

// LookupResult holds values observed complete in the lookup source. A nil
// result means nothing was found.
type LookupResult struct {
	Emails []string
	Phones []string
}

type contactOutLookup struct {
	client contactout.Client
}

// ContactOut adapts a contactout.Client to Lookup.
func ContactOut(client contactout.Client) Lookup {
	return &contactOutLookup{client: client}
}

func (c *contactOutLookup) Lookup(ctx context.Context, s Subject) (*LookupResult, error) {
	data, err := c.client.Search(ctx, contactout.PersonQuery{Name: s.Name, Role: s.Role, Company: s.Company})
	if err != nil || data == nil {
		return nil, err
	}
	return &LookupResult{Emails: data.Emails, Phones: data.Phones}, nil
}
