package inference

import "strings"

// controlTokens are sentinel literals that must never reach a caller even
// when the tokenizer does not flag them as special.
var controlTokens = []string{
	"<s>",
	"</s>",
	"<unk>",
	"<pad>",
	"<|endoftext|>",
	"<|end_of_text|>",
	"<|begin_of_text|>",
	"<|im_start|>",
	"<|im_end|>",
	"<|eot_id|>",
}

// StripControlTokens removes sentinel literals from decoded text. extra adds
// model-specific special tokens (e.g. from tokenizer.json).
func StripControlTokens(text string, extra ...string) string {
	for _, tok := range extra {
		if tok != "" {
			text = strings.ReplaceAll(text, tok, "")
		}
	}
	for _, tok := range controlTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return text
}

// HasControlTokens reports whether any known sentinel literal is present.
func HasControlTokens(text string) bool {
	for _, tok := range controlTokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
