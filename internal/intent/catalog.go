// Package intent classifies why a user message was asked: is it asking to
// clarify, drill into, visualize, compare or analyze something already on
// the table, or is it opening a new topic entirely.
package intent

import "strings"

// Intent is a coarse category of why a message was asked.
type Intent string

const (
	Clarification Intent = "clarification"
	DrillDown     Intent = "drill_down"
	Visualization Intent = "visualization"
	Comparison    Intent = "comparison"
	Analysis      Intent = "analysis"
	// NewTopic is the anchor intent for fresh broad queries. It pulls
	// follow-up confidence down instead of up.
	NewTopic Intent = "new_topic"
)

// Catalog is the single source of truth for every phrase list the engine
// uses: classifier example sets, the pattern-fallback phrases, and the
// reference-word scan. Keeping them in one table prevents the classifier
// and the fallback path from drifting apart.
type Catalog struct {
	// Examples holds representative phrases per intent. Centroids are
	// computed from these.
	Examples map[Intent][]string

	// FollowupPhrases is the curated list used by the pattern-fallback
	// detection path.
	FollowupPhrases []string

	// ReferenceWords are deictic pronouns and ordinal/quantity words
	// whose presence suggests the message points back at earlier context.
	ReferenceWords []string
}

// DefaultCatalog returns the built-in phrase table.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Examples: map[Intent][]string{
			Clarification: {
				"what does this mean",
				"what is that",
				"explain this to me",
				"tell me more",
				"i don't understand",
				"clarify this",
			},
			DrillDown: {
				"more details",
				"break this down",
				"show specifics",
				"dive deeper",
				"expand on this",
				"tell me more details",
			},
			Visualization: {
				"make a chart",
				"show this graphically",
				"create a graph",
				"visualize this",
				"plot this data",
			},
			Comparison: {
				"how does this compare",
				"show differences",
				"versus this",
				"what is the difference",
				"compare these",
			},
			Analysis: {
				"analyze this",
				"find patterns",
				"what insights",
				"what trends do you see",
				"interpret this data",
			},
			NewTopic: {
				"show all customers",
				"list products",
				"what are the sales",
				"display all records",
				"give me totals",
			},
		},
		FollowupPhrases: []string{
			"tell me more",
			"what about",
			"how about",
			"show me",
			"explain",
			"more details",
			"break down",
			"expand",
			"clarify",
			"compare",
			"versus",
			"drill down",
			"make a chart",
			"visualize",
			"more",
		},
		ReferenceWords: []string{
			"it", "this", "that", "these", "those", "they", "them",
			"second", "third", "next", "another", "other",
			"more", "about",
		},
	}
}

// Intents returns the intent labels in a stable order.
func (c *Catalog) Intents() []Intent {
	return []Intent{Clarification, DrillDown, Visualization, Comparison, Analysis, NewTopic}
}

// MatchFollowupPhrase reports whether the lowercased message contains any
// curated follow-up phrase, and which one matched first.
func (c *Catalog) MatchFollowupPhrase(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, phrase := range c.FollowupPhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// CountReferenceWords counts how many reference words appear as whole
// tokens in the message. "it" inside "items" does not count.
func (c *Catalog) CountReferenceWords(message string) int {
	tokens := tokenize(message)
	count := 0
	for _, w := range c.ReferenceWords {
		for _, tok := range tokens {
			if tok == w {
				count++
			}
		}
	}
	return count
}

// GuessIntent is the keyword heuristic used when no embedding capability
// is available. It returns NewTopic when nothing matches.
func (c *Catalog) GuessIntent(message string) Intent {
	lower := strings.ToLower(message)
	keywordMap := []struct {
		intent   Intent
		keywords []string
	}{
		{Visualization, []string{"chart", "graph", "plot", "visualize"}},
		{Comparison, []string{"compare", "versus", "vs", "difference"}},
		{Analysis, []string{"analyze", "analysis", "pattern", "trend", "insight"}},
		{DrillDown, []string{"more details", "break down", "drill", "expand", "specifics"}},
		{Clarification, []string{"what does", "what is", "explain", "mean", "clarify", "tell me more"}},
	}
	for _, entry := range keywordMap {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.intent
			}
		}
	}
	return NewTopic
}

// tokenize lowercases and splits on non-letter/digit runes.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
}
