package search

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/parse"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// Repairer rewrites a malformed AI answer as a single JSON object.
type Repairer interface {
	Repair(ctx context.Context, raw string) (string, error)
}

const repairSystemPrompt = `You convert text into strict JSON.
The user message contains the output of another model that was asked to answer with a single JSON object but did not produce valid JSON.
Re-emit the same data as exactly one valid JSON object. Keep every key and value that is present. Do not invent data, do not summarize, do not add commentary.
Respond with the JSON object only.`

// maxRepairInput bounds what is sent for repair.
const maxRepairInput = 32 * 1024

// AnthropicRepairer repairs JSON with a small Claude model.
type AnthropicRepairer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicRepairer creates a Repairer. An empty model uses the
// client's default.
func NewAnthropicRepairer(client anthropic.Client, model string) *AnthropicRepairer {
	return &AnthropicRepairer{client: client, model: model}
}

// Repair asks the model to re-emit raw as JSON.
func (a *AnthropicRepairer) Repair(ctx context.Context, raw string) (string, error) {
	if len(raw) > maxRepairInput {
		raw = raw[:maxRepairInput]
	}
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   8192,
		System:      repairSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: raw}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "search: repair json")
	}
	return resp.Text(), nil
}

// Decode parses the JSON payload in text into v. When the text is
// malformed and a repairer is set, one repair pass is attempted; if that
// also fails, the original malformed error is returned.
func Decode(ctx context.Context, p *parse.Parser, repairer Repairer, text string, v any) error {
	err := p.Decode(text, v)
	if err == nil || repairer == nil || !errors.Is(err, parse.ErrMalformedResponse) {
		return err
	}

	fixed, rerr := repairer.Repair(ctx, text)
	if rerr != nil {
		zap.L().Warn("search: json repair failed", zap.Error(rerr))
		return err
	}
	if derr := p.Decode(fixed, v); derr != nil {
		zap.L().Warn("search: repaired text still malformed", zap.Error(derr))
		return err
	}
	zap.L().Info("search: recovered malformed response via repair")
	return nil
}
