package conversation

import (
	"regexp"
	"strings"
)

// Key-fact extraction compresses a verbose answer into a short list of
// salient tokens (numbers first, then named entities) so later turns can
// carry the gist of an answer without re-injecting the whole text.

var (
	numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?%?`)
	entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*\b`)
)

// entityStoplist filters sentence-initial words and SQL boilerplate out of
// the proper-noun heuristic.
var entityStoplist = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"What": true, "Where": true, "When": true, "How": true, "Why": true,
	"Here": true, "There": true, "SQL": true, "Select": true, "From": true,
	"Order": true, "Group": true, "Query": true,
}

const (
	maxNumberFacts = 3
	maxEntityFacts = 3
)

// ExtractKeyFacts returns up to max salient strings from the text: the
// first 3 numbers (optionally percent-suffixed) in order of appearance,
// then the first 3 capitalized entities not on the stoplist, deduplicated.
// Deterministic; empty input yields nil. Pure function.
func ExtractKeyFacts(text string, max int) []string {
	if text == "" || max <= 0 {
		return nil
	}

	var facts []string

	numbers := numberPattern.FindAllString(text, -1)
	if len(numbers) > maxNumberFacts {
		numbers = numbers[:maxNumberFacts]
	}
	facts = append(facts, numbers...)

	seen := make(map[string]bool)
	entityCount := 0
	for _, entity := range entityPattern.FindAllString(text, -1) {
		if entityCount >= maxEntityFacts {
			break
		}
		first := entity
		if idx := strings.IndexByte(entity, ' '); idx > 0 {
			first = entity[:idx]
		}
		if entityStoplist[first] || entityStoplist[entity] || seen[entity] {
			continue
		}
		seen[entity] = true
		facts = append(facts, entity)
		entityCount++
	}

	if len(facts) > max {
		facts = facts[:max]
	}
	return facts
}
