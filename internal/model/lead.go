package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotFound is the sentinel the AI uses for a scalar it could not find.
const NotFound = "Not Found"

// IsNotFound reports whether s is absent: empty, whitespace, or the
// NotFound sentinel in any letter case.
func IsNotFound(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, NotFound)
}

// Confidence is an ordinal quality label on a reconciled contact value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences for display: high(0) < medium(1) < low(2).
// Unknown labels sort after low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	default:
		return 3
	}
}

// ParseConfidence maps a label to a Confidence. Unknown labels are low.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// EnrichmentStatus drives per-lead enrichment gating and rendering.
type EnrichmentStatus string

const (
	EnrichmentUnset    EnrichmentStatus = ""
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentNotFound EnrichmentStatus = "not_found"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// EnrichedContactInfo is one candidate email or phone with its confidence.
type EnrichedContactInfo struct {
	Value      string     `json:"value" yaml:"value"`
	Confidence Confidence `json:"confidence" yaml:"confidence"`
}

// EnrichedData is the result of a contact-enrichment pass.
type EnrichedData struct {
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	LinkedInURL string                `json:"linkedinUrl,omitempty" yaml:"linkedin_url,omitempty"`
	Emails      []EnrichedContactInfo `json:"emails" yaml:"emails"`
	Phones      []EnrichedContactInfo `json:"phones" yaml:"phones"`
}

// Lead is one identified company contact. Scalar fields the AI reported as
// NotFound are stored empty; the sentinel never survives normalization.
type Lead struct {
	Name             string           `json:"name" yaml:"name"`
	Role             string           `json:"role" yaml:"role"`
	Email            string           `json:"email" yaml:"email"`
	Phone            string           `json:"phone" yaml:"phone"`
	IsPrimaryTarget  bool             `json:"isPrimaryTarget" yaml:"is_primary_target"`
	EnrichedData     *EnrichedData    `json:"enrichedData,omitempty" yaml:"enriched_data,omitempty"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus,omitempty" yaml:"enrichment_status,omitempty"`
	EnrichmentError  string           `json:"enrichmentError,omitempty" yaml:"enrichment_error,omitempty"`
}

func (l Lead) HasName() bool  { return !IsNotFound(l.Name) }
func (l Lead) HasRole() bool  { return !IsNotFound(l.Role) }
func (l Lead) HasEmail() bool { return !IsNotFound(l.Email) }
func (l Lead) HasPhone() bool { return !IsNotFound(l.Phone) }

// WebChunk is the web citation inside a GroundingChunk.
type WebChunk struct {
	URI   string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// GroundingChunk is a citation returned alongside an AI search response.
type GroundingChunk struct {
	Web *WebChunk `json:"web,omitempty" yaml:"web,omitempty"`
}

// Renderable reports whether the chunk has a URI to link to. Chunks
// without one render as nothing.
func (g GroundingChunk) Renderable() bool {
	return g.Web != nil && strings.TrimSpace(g.Web.URI) != ""
}

// ResearchResult is the atomically-applied output of one research query.
type ResearchResult struct {
	Overview string           `json:"overview" yaml:"overview"`
	Leads    []Lead           `json:"leads" yaml:"leads"`
	Sources  []GroundingChunk `json:"sources" yaml:"sources"`
}

// RawContact is a contact record as the AI emitted it. Every field may be
// missing; sentinel handling happens during normalization.
type RawContact struct {
	Name            *string   `json:"name"`
	Role            *string   `json:"role"`
	Email           *string   `json:"email"`
	Phone           *string   `json:"phone"`
	IsPrimaryTarget *LooseBool `json:"isPrimaryTarget"`
}

// LooseBool decodes booleans the AI sometimes emits as strings or numbers.
type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = LooseBool(t)
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(t))
		*b = LooseBool(err == nil && parsed)
	case float64:
		*b = LooseBool(t != 0)
	default:
		*b = false
	}
	return nil
}

// Str dereferences an optional string, returning "" when absent.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
