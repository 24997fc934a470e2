package inference

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samcharles93/genserve/internal/logits"
)

// Generator extends a token sequence one sampled token at a time.
type Generator struct {
	Model      Model
	Sampler    *logits.Sampler
	StopTokens []int
}

// Run appends tokens to prompt until the sequence holds maxLength tokens or a
// stop token is sampled. The returned slice includes the prompt and, when
// generation ended on one, the stop token. A prompt already at maxLength is
// returned unchanged.
func (g *Generator) Run(ctx context.Context, prompt []int, maxLength int) (toks []int, stats Stats, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			toks = nil
			err = fmt.Errorf("panic in generation: %v", rec)
		}
	}()

	start := time.Now()
	stats.PromptTokens = len(prompt)
	stats.StopReason = StopLength

	toks = make([]int, 0, max(maxLength, len(prompt)))
	toks = append(toks, prompt...)

	for len(toks) < maxLength {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		row, err := g.Model.Forward(ctx, toks)
		if err != nil {
			return nil, stats, fmt.Errorf("forward step %d: %w", stats.TokensGenerated, err)
		}
		next := g.Sampler.Sample(row, toks)
		toks = append(toks, next)
		stats.TokensGenerated++
		if slices.Contains(g.StopTokens, next) {
			stats.StopReason = StopEOS
			break
		}
	}

	stats.Duration = time.Since(start)
	if secs := stats.Duration.Seconds(); secs > 0 {
		stats.TPS = float64(stats.TokensGenerated) / secs
	}
	return toks, stats, nil
}
