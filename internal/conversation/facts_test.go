package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeyFactsEmpty(t *testing.T) {
	assert.Nil(t, ExtractKeyFacts("", 6))
	assert.Nil(t, ExtractKeyFacts("some text", 0))
}

func TestExtractKeyFactsNumbersFirst(t *testing.T) {
	text := "Revenue grew 12.5% to 340 in Berlin, with 7 new stores and 2 closures."
	facts := ExtractKeyFacts(text, 6)

	// First three numbers in order of appearance, then entities.
	assert.Equal(t, []string{"12.5%", "340", "7", "Revenue", "Berlin"}, facts)
}

func TestExtractKeyFactsEntityStoplist(t *testing.T) {
	text := "The top seller was Iron Maiden. This beat Metallica narrowly."
	facts := ExtractKeyFacts(text, 6)

	assert.Contains(t, facts, "Iron Maiden")
	assert.Contains(t, facts, "Metallica")
	assert.NotContains(t, facts, "The")
	assert.NotContains(t, facts, "This")
}

func TestExtractKeyFactsDeduplicated(t *testing.T) {
	text := "Chicago and Chicago and Chicago again, then Boston."
	facts := ExtractKeyFacts(text, 6)
	assert.Equal(t, []string{"Chicago", "Boston"}, facts)
}

func TestExtractKeyFactsBound(t *testing.T) {
	text := "1 2 3 4 5 Alpha Bravo Charlie Delta Echo"
	facts := ExtractKeyFacts(text, 6)
	assert.LessOrEqual(t, len(facts), 6)

	facts = ExtractKeyFacts(text, 2)
	assert.Equal(t, []string{"1", "2"}, facts)
}

func TestExtractKeyFactsDeterministic(t *testing.T) {
	text := "Sales hit 42% in Texas and 17 in Ohio."
	first := ExtractKeyFacts(text, 6)
	second := ExtractKeyFacts(text, 6)
	assert.Equal(t, first, second)
}
