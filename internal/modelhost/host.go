// Package modelhost owns the single loaded generation engine and serializes
// access to it.
package modelhost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/genserve/internal/inference"
	"github.com/samcharles93/genserve/internal/logger"
	"github.com/samcharles93/genserve/internal/metrics"
)

// Host is created once at startup and is read-only afterwards.
type Host struct {
	engine inference.Engine
	cfg    Config
	gate   *semaphore.Weighted
	log    logger.Logger
	stats  *metrics.Collectors
}

type Option func(*Host)

func WithMetrics(c *metrics.Collectors) Option {
	return func(h *Host) { h.stats = c }
}

// New wraps an already opened engine.
func New(engine inference.Engine, cfg Config, log logger.Logger, opts ...Option) (*Host, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Discard()
	}
	h := &Host{
		engine: engine,
		cfg:    cfg,
		gate:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log:    log.With("backend", cfg.Backend, "model", cfg.Model),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Host) Config() Config { return h.cfg }

// Generate encodes text, runs the fixed generation policy and returns the
// decoded sequence. Calls beyond MaxConcurrent wait for a slot until ctx is
// done.
func (h *Host) Generate(ctx context.Context, text string) (string, error) {
	queued := time.Now()
	if err := h.gate.Acquire(ctx, 1); err != nil {
		h.stats.RecordFailure("cancelled")
		return "", err
	}
	defer h.gate.Release(1)
	h.stats.ObserveQueueWait(time.Since(queued))
	defer h.stats.Track()()

	if h.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.GenerateTimeout)
		defer cancel()
	}

	res, err := h.engine.Generate(ctx, &inference.Request{
		Text:               text,
		MaxLength:          h.cfg.MaxLength,
		NumReturnSequences: DefaultNumReturnSequences,
		Temperature:        h.cfg.Temperature,
		Seed:               h.cfg.Seed,
	})
	if err != nil {
		err = classify(ctx, err)
		kind := Kind(err)
		h.stats.RecordFailure(kind)
		h.log.Warn("generation failed", "kind", kind, "error", err)
		return "", err
	}

	h.stats.ObserveGeneration(res.Stats.Duration, res.Stats.TokensGenerated)
	h.log.Debug("generation done",
		"prompt_tokens", res.Stats.PromptTokens,
		"new_tokens", res.Stats.TokensGenerated,
		"stop", string(res.Stats.StopReason),
		"tps", fmt.Sprintf("%.2f", res.Stats.TPS),
	)
	return res.Text, nil
}

// Close releases the engine.
func (h *Host) Close() error {
	return h.engine.Close()
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, inference.ErrEncode):
		return wrap(ErrInvalidInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	default:
		return wrap(ErrGenerationFailure, err)
	}
}
