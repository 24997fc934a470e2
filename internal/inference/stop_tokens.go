package inference

import (
	"slices"

	"github.com/samcharles93/genserve/internal/tokenizer"
)

// BuildStopTokens collects end-of-sequence ids. generation_config.json wins
// when it names any; the tokenizer's eos token is added when it differs.
func BuildStopTokens(tokCfg tokenizer.Config, gen GenDefaults) []int {
	stop := make([]int, 0, len(gen.EOSTokenIDs)+1)
	for _, id := range gen.EOSTokenIDs {
		if id >= 0 && !slices.Contains(stop, id) {
			stop = append(stop, id)
		}
	}
	if tokCfg.EOSTokenID >= 0 && !slices.Contains(stop, tokCfg.EOSTokenID) {
		stop = append(stop, tokCfg.EOSTokenID)
	}
	return stop
}
