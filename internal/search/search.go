// Package search abstracts the web-grounded AI service behind Searcher and
// provides Gemini and Perplexity backends.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/pkg/gemini"
	"github.com/sells-group/lead-engine/pkg/perplexity"
)

// Searcher sends one instruction to an AI service with web grounding
// enabled.
type Searcher interface {
	Search(ctx context.Context, prompt string) (*Result, error)
}

// Result is the raw completion text plus its citations, in the order the
// service returned them.
type Result struct {
	Text    string
	Sources []model.GroundingChunk
}

// Gemini adapts a gemini.Client to Searcher.
type Gemini struct {
	client gemini.Client
}

// NewGemini creates a Gemini-backed Searcher.
func NewGemini(client gemini.Client) *Gemini {
	return &Gemini{client: client}
}

// Search runs a grounded GenerateContent call.
func (g *Gemini) Search(ctx context.Context, prompt string) (*Result, error) {
	resp, err := g.client.GroundedSearch(ctx, prompt)
	if err != nil {
		return nil, resilience.ForStatus(eris.Wrap(err, "search: gemini"), gemini.StatusCode(err))
	}

	res := &Result{Text: resp.Text, Sources: make([]model.GroundingChunk, 0, len(resp.Chunks))}
	for _, ch := range resp.Chunks {
		res.Sources = append(res.Sources, model.GroundingChunk{
			Web: &model.WebChunk{URI: ch.URI, Title: ch.Title},
		})
	}
	return res, nil
}

const perplexitySystemPrompt = "You are a precise research assistant. Follow the user's output format exactly."

// Perplexity adapts a perplexity.Client to Searcher. Sonar models always
// search the web, so no grounding flag is sent.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity creates a Perplexity-backed Searcher.
func NewPerplexity(client perplexity.Client) *Perplexity {
	return &Perplexity{client: client}
}

// Search runs one chat completion.
func (p *Perplexity) Search(ctx context.Context, prompt string) (*Result, error) {
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: perplexitySystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		var status int
		var apiErr *perplexity.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, resilience.ForStatus(eris.Wrap(err, "search: perplexity"), status)
	}

	return &Result{Text: resp.Text(), Sources: perplexitySources(resp)}, nil
}

// perplexitySources prefers search_results, which carry titles, and falls
// back to bare citation URLs.
func perplexitySources(resp *perplexity.ChatCompletionResponse) []model.GroundingChunk {
	out := make([]model.GroundingChunk, 0, len(resp.SearchResults)+len(resp.Citations))
	if len(resp.SearchResults) > 0 {
		for _, sr := range resp.SearchResults {
			out = append(out, model.GroundingChunk{Web: &model.WebChunk{URI: sr.URL, Title: sr.Title}})
		}
		return out
	}
	for _, c := range resp.Citations {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, model.GroundingChunk{Web: &model.WebChunk{URI: c}})
	}
	return out
}
