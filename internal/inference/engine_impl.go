package inference

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/genserve/internal/logits"
)

// LocalConfig wires an in-process tokenizer and model into a LocalEngine.
type LocalConfig struct {
	Tokenizer  Tokenizer
	Model      Model
	Defaults   GenDefaults
	StopTokens []int
	// SpecialTokens are stripped from decoded text in addition to the
	// built-in control tokens.
	SpecialTokens []string
	// Closers are released in reverse order by Close.
	Closers []io.Closer
}

// LocalEngine runs tokenizer and model in this process.
type LocalEngine struct {
	tokenizer  Tokenizer
	model      Model
	defaults   GenDefaults
	stopTokens []int
	specials   []string
	closers    []io.Closer
}

func NewLocalEngine(cfg LocalConfig) *LocalEngine {
	return &LocalEngine{
		tokenizer:  cfg.Tokenizer,
		model:      cfg.Model,
		defaults:   cfg.Defaults,
		stopTokens: append([]int(nil), cfg.StopTokens...),
		specials:   append([]string(nil), cfg.SpecialTokens...),
		closers:    cfg.Closers,
	}
}

func (e *LocalEngine) Generate(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := safeEncode(e.tokenizer, req.Text)
	if err != nil {
		return nil, encodeError{err: err}
	}
	if len(ids) == 0 {
		return nil, encodeError{err: errors.New("text produced no tokens")}
	}

	gen := &Generator{
		Model:      e.model,
		Sampler:    logits.NewSampler(ResolveSampler(e.defaults, req)),
		StopTokens: e.stopTokens,
	}
	toks, stats, err := gen.Run(ctx, ids, req.MaxLength)
	if err != nil {
		return nil, err
	}

	text, err := safeDecode(e.tokenizer, toks)
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return &Result{
		Text:  StripControlTokens(text, e.specials...),
		Stats: stats,
	}, nil
}

func (e *LocalEngine) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func safeEncode(tok Tokenizer, text string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(text)
}

func safeDecode(tok Tokenizer, ids []int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode: %v", rec)
		}
	}()
	return tok.Decode(ids, true)
}
