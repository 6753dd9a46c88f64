package conversation

import (
	"fmt"
	"strings"

	"sqltalk/internal/logging"
)

// EnhancerConfig bounds the size of the injected context block.
type EnhancerConfig struct {
	// AnswerChars caps how much of each stored answer is replayed.
	AnswerChars int
	// MaxExchanges caps how many recent exchanges are replayed. It
	// normally matches the store window so a follow-up sees the whole
	// retained conversation.
	MaxExchanges int
}

// DefaultEnhancerConfig returns the calibrated defaults.
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		AnswerChars:  300,
		MaxExchanges: 5,
	}
}

// contextHeader opens every injected block. It doubles as the idempotence
// guard: a message that already starts with it is never wrapped again.
const contextHeader = "Previous conversation context:"

// Enhancer rewrites a follow-up message into a self-contained prompt by
// prepending structured recent context. Non-follow-ups pass through
// byte-for-byte.
type Enhancer struct {
	cfg EnhancerConfig
}

// NewEnhancer creates an enhancer.
func NewEnhancer(cfg EnhancerConfig) *Enhancer {
	if cfg.AnswerChars <= 0 {
		cfg.AnswerChars = DefaultEnhancerConfig().AnswerChars
	}
	if cfg.MaxExchanges <= 0 {
		cfg.MaxExchanges = DefaultEnhancerConfig().MaxExchanges
	}
	return &Enhancer{cfg: cfg}
}

// Enhance returns the message unchanged unless det marks it a follow-up
// against a non-empty store. The output embeds only the stored snapshot
// of prior exchanges, so enhancing twice never nests context blocks.
func (e *Enhancer) Enhance(message string, det Detection, store *ContextStore) string {
	if !det.IsFollowup || store == nil || store.IsEmpty() {
		return message
	}
	if strings.HasPrefix(message, contextHeader) {
		return message
	}

	recent := store.Recent(e.cfg.MaxExchanges)

	var b strings.Builder
	b.WriteString(contextHeader + "\n")
	for i, ex := range recent {
		fmt.Fprintf(&b, "\n[%d] User asked: %s\n", i+1, ex.UserMessage)
		if ex.SQL != "" {
			fmt.Fprintf(&b, "    SQL used: %s\n", ex.SQL)
		}
		if ex.Answer != "" {
			fmt.Fprintf(&b, "    Answer: %s\n", clipAnswer(ex.Answer, e.cfg.AnswerChars))
		}
		if ex.ChartCount > 0 {
			fmt.Fprintf(&b, "    (%d chart(s) were generated)\n", ex.ChartCount)
		}
		if len(ex.KeyFacts) > 0 {
			fmt.Fprintf(&b, "    Key facts: %s\n", strings.Join(ex.KeyFacts, ", "))
		}
	}
	fmt.Fprintf(&b, "\nCurrent question: %s\n", message)
	b.WriteString("\nPlease answer the current question using the conversation context above when it is relevant.")

	enhanced := b.String()
	logging.ContextDebug("Enhanced follow-up with %d exchange(s), %d -> %d chars",
		len(recent), len(message), len(enhanced))
	return enhanced
}

// clipAnswer truncates long answers and marks the cut.
func clipAnswer(answer string, max int) string {
	if len(answer) <= max {
		return answer
	}
	return answer[:max] + "..."
}
