// Package gemini wraps the Gemini API for web-grounded text generation.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Client generates text with Google Search grounding enabled.
type Client interface {
	GroundedSearch(ctx context.Context, prompt string) (*Response, error)
}

// Response is the text answer plus its grounding metadata.
type Response struct {
	Text          string
	Chunks        []Chunk
	SearchQueries []string
}

// Chunk is one web citation. Either field may be empty.
type Chunk struct {
	URI   string
	Title string
}

// Option configures the client.
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(o *options) {
		if strings.TrimSpace(model) != "" {
			o.model = strings.TrimSpace(model)
		}
	}
}

// WithBaseURL points the client at a proxy or test server.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(url)
	}
}

// WithHTTPClient overrides the transport used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

type sdkClient struct {
	models *genai.Models
	model  string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}

	o := options{model: DefaultModel}
	for _, fn := range opts {
		fn(&o)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cc.HTTPOptions.BaseURL = o.baseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{models: client.Models, model: o.model}, nil
}

func (c *sdkClient) GroundedSearch(ctx context.Context, prompt string) (*Response, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools:          []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		CandidateCount: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	return toResponse(resp), nil
}

func toResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{Text: resp.Text()}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return out
	}
	for _, ch := range gm.GroundingChunks {
		if ch == nil || ch.Web == nil {
			continue
		}
		out.Chunks = append(out.Chunks, Chunk{URI: ch.Web.URI, Title: ch.Web.Title})
	}
	out.SearchQueries = append(out.SearchQueries, gm.WebSearchQueries...)
	return out
}

// StatusCode extracts the HTTP status from a Gemini API error, or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
