// Package parse extracts the JSON object embedded in free-form AI text.
//
// Models wrap their JSON in prose or markdown fences. The extraction window
// runs from the first '{' to the last '}' in the text, so a literal brace in
// prose before the real payload corrupts the window. Options.PreferFences
// narrows the window to a fenced block first when one is present.
package parse

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformedResponse means the AI text did not contain parseable JSON.
var ErrMalformedResponse = errors.New("malformed AI response")

// Options tunes extraction.
type Options struct {
	// PreferFences searches inside the first ``` fenced block (with or
	// without a json tag) before brace scanning.
	PreferFences bool
}

// Parser extracts JSON payloads using a fixed set of options.
type Parser struct {
	opts Options
}

// New creates a Parser.
func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// ExtractJSON returns the bytes between the first '{' and the last '}'
// inclusive. The result is guaranteed to be valid JSON.
func (p *Parser) ExtractJSON(text string) ([]byte, error) {
	window := text
	if p != nil && p.opts.PreferFences {
		if body, ok := fencedBlock(text); ok && strings.Contains(body, "{") {
			window = body
		}
	}

	start := strings.Index(window, "{")
	if start < 0 {
		return nil, eris.Wrap(ErrMalformedResponse, "parse: no opening brace")
	}
	end := strings.LastIndex(window, "}")
	if end < start {
		return nil, eris.Wrap(ErrMalformedResponse, "parse: no closing brace")
	}

	candidate := []byte(window[start : end+1])
	if !json.Valid(candidate) {
		return nil, eris.Wrap(ErrMalformedResponse, "parse: invalid json between braces")
	}
	return candidate, nil
}

// Decode extracts the JSON payload from text and unmarshals it into v.
func (p *Parser) Decode(text string, v any) error {
	raw, err := p.ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return eris.Wrapf(ErrMalformedResponse, "parse: unmarshal: %v", err)
	}
	return nil
}

// ExtractJSON runs ExtractJSON with default options.
func ExtractJSON(text string) ([]byte, error) {
	return (*Parser)(nil).ExtractJSON(text)
}

// Decode runs Decode with default options.
func Decode(text string, v any) error {
	return (*Parser)(nil).Decode(text, v)
}

// fencedBlock returns the body of the first ``` fenced block. An optional
// language tag on the opening fence line is skipped.
func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || isLangTag(tag) {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func isLangTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
