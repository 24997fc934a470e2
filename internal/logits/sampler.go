package logits

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
)

// SamplerConfig mirrors the generation knobs of a Hugging Face
// generation_config.json. The zero value decodes greedily.
type SamplerConfig struct {
	DoSample          bool
	Seed              int64
	Temperature       float32
	TopK              int
	TopP              float32
	RepetitionPenalty float32
}

// Sampler picks the next token id from a logits row. It is not safe for
// concurrent use; create one per generation.
type Sampler struct {
	cfg     SamplerConfig
	rng     *rand.Rand
	scratch []float32
	idx     []int
	prob    []float64
}

// NewSampler normalises cfg and returns a sampler.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Temperature <= 0 {
		cfg.DoSample = false
		cfg.Temperature = 1
	}
	if cfg.TopK < 0 {
		cfg.TopK = 0
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepetitionPenalty <= 0 {
		cfg.RepetitionPenalty = 1
	}
	return &Sampler{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Greedy reports whether Sample always returns the argmax.
func (s *Sampler) Greedy() bool {
	return !s.cfg.DoSample
}

// Sample returns the next token id. history holds every token already in
// the sequence and feeds the repetition penalty. logits is not modified.
func (s *Sampler) Sample(logits []float32, history []int) int {
	if len(logits) == 0 {
		panic("logits: empty logits row")
	}
	row := logits
	if s.cfg.RepetitionPenalty != 1 && len(history) > 0 {
		s.scratch = append(s.scratch[:0], logits...)
		row = s.scratch
		seen := make(map[int]struct{}, len(history))
		for _, id := range history {
			if id < 0 || id >= len(row) {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if row[id] > 0 {
				row[id] /= s.cfg.RepetitionPenalty
			} else {
				row[id] *= s.cfg.RepetitionPenalty
			}
		}
	}

	if !s.cfg.DoSample {
		return argmax(row)
	}

	idx := s.candidates(row)
	invTemp := 1 / float64(s.cfg.Temperature)
	maxv := float64(row[idx[0]]) * invTemp

	if cap(s.prob) < len(idx) {
		s.prob = make([]float64, len(idx))
	}
	prob := s.prob[:len(idx)]
	var sum float64
	for i, id := range idx {
		prob[i] = math.Exp(float64(row[id])*invTemp - maxv)
		sum += prob[i]
	}
	for i := range prob {
		prob[i] /= sum
	}

	// Nucleus cut keeps the smallest prefix whose mass reaches TopP, always
	// at least one candidate.
	cut := len(prob)
	if s.cfg.TopP < 1 {
		var c float64
		for i, p := range prob {
			c += p
			if c >= float64(s.cfg.TopP) {
				cut = i + 1
				break
			}
		}
	}
	var mass float64
	for _, p := range prob[:cut] {
		mass += p
	}

	r := s.rng.Float64() * mass
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r < c {
			return idx[i]
		}
	}
	return idx[cut-1]
}

// candidates returns token ids ordered by descending logit, truncated to TopK
// when it is set.
func (s *Sampler) candidates(row []float32) []int {
	k := s.cfg.TopK
	if k == 0 || k > len(row) {
		k = len(row)
	}
	idx := s.idx[:0]
	if k < 64 {
		// Insertion into a short sorted list beats sorting the whole vocabulary.
		for i, v := range row {
			pos := len(idx)
			for pos > 0 && row[idx[pos-1]] < v {
				pos--
			}
			if pos >= k {
				continue
			}
			idx = append(idx, 0)
			copy(idx[pos+1:], idx[pos:])
			idx[pos] = i
			if len(idx) > k {
				idx = idx[:k]
			}
		}
	} else {
		for i := range row {
			idx = append(idx, i)
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Compare(row[b], row[a])
		})
		idx = idx[:k]
	}
	s.idx = idx
	return idx
}

func argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
