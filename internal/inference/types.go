package inference

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Engine runs one encode → generate → decode pass per call.
type Engine interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
	Close() error
}

// Tokenizer maps text to and from token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int, skipSpecial bool) (string, error)
}

// Model returns next-token logits for a full token sequence.
type Model interface {
	Forward(ctx context.Context, ids []int) ([]float32, error)
}

// Request is a single generation call. MaxLength counts the whole sequence,
// prompt included.
type Request struct {
	Text               string
	MaxLength          int
	NumReturnSequences int

	// Optional operator overrides of the model's sampling defaults.
	Temperature *float64
	Seed        *int64
}

type StopReason string

const (
	StopEOS    StopReason = "eos"
	StopLength StopReason = "length"
)

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
	StopReason      StopReason
}

// Result holds the decoded sequence (prompt followed by continuation).
type Result struct {
	Text  string
	Stats Stats
}

var (
	// ErrEncode marks failures to tokenize the request text.
	ErrEncode = errors.New("encode failed")
	// ErrUnsupported marks request options the engine cannot honour.
	ErrUnsupported = errors.New("unsupported request")
)

type encodeError struct {
	err error
}

func (e encodeError) Error() string { return "encode prompt: " + e.err.Error() }

func (e encodeError) Unwrap() []error { return []error{ErrEncode, e.err} }

// Validate checks the fixed-shape fields of a request.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is required")
	}
	if r.MaxLength <= 0 {
		return errors.New("max length must be positive")
	}
	if r.NumReturnSequences > 1 {
		return fmt.Errorf("%w: %d return sequences", ErrUnsupported, r.NumReturnSequences)
	}
	return nil
}
