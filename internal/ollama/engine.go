package ollama

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/samcharles93/genserve/internal/inference"
)

// Engine adapts a Client to inference.Engine for one model.
type Engine struct {
	client *Client
	model  string
}

// Open checks that the server knows model before returning an engine.
func Open(ctx context.Context, client *Client, model string) (*Engine, error) {
	if model == "" {
		return nil, errors.New("ollama: model name is required")
	}
	if _, err := client.Show(ctx, model); err != nil {
		return nil, fmt.Errorf("ollama: model %q: %w", model, err)
	}
	return &Engine{client: client, model: model}, nil
}

// Generate sends the raw text (no chat template) and returns prompt plus
// continuation, matching the local engine's output shape. Ollama budgets
// new tokens only, so MaxLength becomes num_predict. Decoding is greedy
// unless the request overrides temperature.
func (e *Engine) Generate(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(req.Text) {
		return nil, fmt.Errorf("%w: invalid UTF-8", inference.ErrEncode)
	}

	temp := 0.0
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	resp, err := e.client.Generate(ctx, &GenerateRequest{
		Model:  e.model,
		Prompt: req.Text,
		Raw:    true,
		Options: GenerateOptions{
			NumPredict:  req.MaxLength,
			Temperature: &temp,
			Seed:        req.Seed,
		},
	})
	if err != nil {
		return nil, err
	}

	stats := inference.Stats{
		PromptTokens:    resp.PromptEvalCount,
		TokensGenerated: resp.EvalCount,
		Duration:        nanos(resp.TotalDuration),
		StopReason:      inference.StopEOS,
	}
	if resp.DoneReason == "length" {
		stats.StopReason = inference.StopLength
	}
	if d := nanos(resp.EvalDuration); d > 0 {
		stats.TPS = float64(resp.EvalCount) / d.Seconds()
	}
	return &inference.Result{
		Text:  inference.StripControlTokens(req.Text + resp.Response),
		Stats: stats,
	}, nil
}

// Close is a no-op; the model stays resident in the server.
func (e *Engine) Close() error { return nil }
