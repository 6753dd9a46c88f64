package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqltalk/internal/db"
)

func TestSuggestCategoricalAndNumeric(t *testing.T) {
	s := NewSuggester()
	result := &db.Result{
		Columns: []string{"genre", "sales"},
		Rows: [][]string{
			{"Rock", "340"},
			{"Jazz", "120"},
			{"Metal", "95"},
		},
	}

	charts := s.Suggest(result)
	require.Len(t, charts, 2)

	assert.Equal(t, Bar, charts[0].Type)
	assert.Equal(t, "genre", charts[0].XColumn)
	assert.Equal(t, "sales", charts[0].YColumn)
	assert.Equal(t, Pie, charts[1].Type)
}

func TestSuggestSkipsPieAtHighCardinality(t *testing.T) {
	s := NewSuggester()
	result := &db.Result{Columns: []string{"city", "count"}}
	for i := 0; i < 15; i++ {
		result.Rows = append(result.Rows, []string{string(rune('a' + i)), "1"})
	}

	charts := s.Suggest(result)
	require.Len(t, charts, 1)
	assert.Equal(t, Bar, charts[0].Type)
}

func TestSuggestTwoNumerics(t *testing.T) {
	s := NewSuggester()
	result := &db.Result{
		Columns: []string{"price", "quantity"},
		Rows:    [][]string{{"9.99", "3"}, {"14.5", "1"}},
	}

	charts := s.Suggest(result)
	require.Len(t, charts, 1)
	assert.Equal(t, Scatter, charts[0].Type)
	assert.Equal(t, "price", charts[0].XColumn)
	assert.Equal(t, "quantity", charts[0].YColumn)
}

func TestSuggestSingleNumeric(t *testing.T) {
	s := NewSuggester()
	result := &db.Result{
		Columns: []string{"total"},
		Rows:    [][]string{{"10"}, {"20"}, {"30"}},
	}

	charts := s.Suggest(result)
	require.Len(t, charts, 1)
	assert.Equal(t, Histogram, charts[0].Type)
}

func TestSuggestNothingToDraw(t *testing.T) {
	s := NewSuggester()

	assert.Nil(t, s.Suggest(nil))
	assert.Nil(t, s.Suggest(&db.Result{Columns: []string{"n"}}))

	// Text-only results have no numeric series to plot.
	textOnly := &db.Result{
		Columns: []string{"name", "country"},
		Rows:    [][]string{{"AC/DC", "Australia"}},
	}
	assert.Nil(t, s.Suggest(textOnly))

	// A column of only NULLs is not a numeric series.
	nulls := &db.Result{
		Columns: []string{"sales"},
		Rows:    [][]string{{"NULL"}, {"NULL"}},
	}
	assert.Nil(t, s.Suggest(nulls))
}
