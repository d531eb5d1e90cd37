// Package contactout is a client for the ContactOut people-search API.
package contactout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.contactout.com"

// Client searches ContactOut for a person's revealed contact details.
type Client interface {
	Search(ctx context.Context, q PersonQuery) (*ContactData, error)
}

// PersonQuery identifies who to look up. Role and Company are optional.
type PersonQuery struct {
	Name    string
	Role    string
	Company string
}

// ContactData is the union of every email and phone found across all
// matching profiles, deduplicated in first-seen order.
type ContactData struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// LookupServiceError is a non-2xx response from the API.
type LookupServiceError struct {
	StatusCode int
	Body       string
}

func (e *LookupServiceError) Error() string {
	return fmt.Sprintf("contactout: request failed with status %d: %s", e.StatusCode, e.Body)
}

type searchRequest struct {
	Name            string   `json:"name"`
	JobTitle        []string `json:"job_title,omitempty"`
	Company         []string `json:"company,omitempty"`
	MatchExperience string   `json:"match_experience"`
	DataTypes       []string `json:"data_types"`
	RevealInfo      bool     `json:"reveal_info"`
}

type searchResponse struct {
	Profiles profiles `json:"profiles"`
}

type profile struct {
	ContactInfo *struct {
		Emails         []string `json:"emails"`
		PersonalEmails []string `json:"personal_emails"`
		WorkEmails     []string `json:"work_emails"`
		Phones         []string `json:"phones"`
	} `json:"contact_info"`
}

// profiles accepts either a keyed object or an empty array.
type profiles []profile

func (p *profiles) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*p = nil
		return nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return err
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(profiles, 0, len(keys))
	for _, k := range keys {
		var pr profile
		if err := json.Unmarshal(keyed[k], &pr); err != nil {
			return err
		}
		out = append(out, pr)
	}
	*p = out
	return nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a ContactOut client authenticated by token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns nil data (and no error) when nothing is found.
func (c *httpClient) Search(ctx context.Context, q PersonQuery) (*ContactData, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "contactout: rate limit wait")
		}
	}

	req := searchRequest{
		Name:            q.Name,
		MatchExperience: "both",
		DataTypes:       []string{"personal_email", "work_email", "phone"},
		RevealInfo:      true,
	}
	if role := strings.TrimSpace(q.Role); role != "" && !strings.EqualFold(role, "not found") {
		req.JobTitle = []string{role}
	}
	if company := strings.TrimSpace(q.Company); company != "" {
		req.Company = []string{company}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "contactout: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/people/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "contactout: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("token", c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "contactout: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "contactout: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LookupServiceError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "contactout: unmarshal response")
	}
	return collect(result.Profiles), nil
}

func collect(ps profiles) *ContactData {
	var emails, phones orderedSet
	for _, p := range ps {
		if p.ContactInfo == nil {
			continue
		}
		emails.add(p.ContactInfo.Emails...)
		emails.add(p.ContactInfo.PersonalEmails...)
		emails.add(p.ContactInfo.WorkEmails...)
		phones.add(p.ContactInfo.Phones...)
	}
	if len(emails.items) == 0 && len(phones.items) == 0 {
		return nil
	}
	return &ContactData{Emails: emails.items, Phones: phones.items}
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func (s *orderedSet) add(vs ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, v := range vs {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
