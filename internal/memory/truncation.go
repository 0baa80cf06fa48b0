package memory

import "strings"

// MethodTruncation is the registered name of the truncation method.
const MethodTruncation = "truncation"

const defaultMaxTokens = 500

// Truncation caps text at a maximum number of whitespace tokens.
// Tokenization is deliberately simple: the method measures memory
// pressure, it does not reproduce any provider's tokenizer.
type Truncation struct {
	maxTokens int
}

// NewTruncation creates a truncation method keeping at most maxTokens
// whitespace tokens. Non-positive values fall back to the default cap.
func NewTruncation(maxTokens int) *Truncation {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Truncation{maxTokens: maxTokens}
}

// Process returns text unchanged when it fits the cap, otherwise the
// first maxTokens tokens joined by single spaces.
func (t *Truncation) Process(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) <= t.maxTokens {
		return text
	}
	return strings.Join(tokens[:t.maxTokens], " ")
}

// Info describes the method and its effective cap.
func (t *Truncation) Info() MethodInfo {
	return MethodInfo{
		Method:      MethodTruncation,
		Description: "truncates text to a maximum number of whitespace tokens",
		Parameters:  map[string]any{"max_tokens": t.maxTokens},
	}
}
