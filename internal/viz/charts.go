// Package viz proposes chart descriptors for query results. It suggests
// what to draw; rendering belongs to the host application.
package viz

import (
	"fmt"
	"strconv"

	"sqltalk/internal/db"
	"sqltalk/internal/logging"
)

// ChartType names a suggested visual.
type ChartType string

const (
	Bar       ChartType = "bar"
	Pie       ChartType = "pie"
	Scatter   ChartType = "scatter"
	Histogram ChartType = "histogram"
)

// Chart describes one suggested visual over a result set.
type Chart struct {
	Type    ChartType
	Title   string
	XColumn string
	YColumn string
}

// pieMaxCategories is the cardinality above which a pie chart stops
// being readable.
const pieMaxCategories = 10

// Suggester derives chart suggestions from result shape.
type Suggester struct{}

// NewSuggester creates a Suggester.
func NewSuggester() *Suggester {
	return &Suggester{}
}

// Suggest inspects the column shapes of result and proposes charts.
// A categorical column paired with a numeric one yields a bar chart,
// plus a pie chart at low cardinality. Two numeric columns yield a
// scatter plot. A single numeric column yields a histogram. Results
// with no rows or no usable shape yield nil.
func (s *Suggester) Suggest(result *db.Result) []Chart {
	if result == nil || len(result.Rows) == 0 || len(result.Columns) == 0 {
		return nil
	}

	numeric := make([]int, 0, len(result.Columns))
	categorical := make([]int, 0, len(result.Columns))
	for i := range result.Columns {
		if columnIsNumeric(result, i) {
			numeric = append(numeric, i)
		} else {
			categorical = append(categorical, i)
		}
	}

	var charts []Chart
	switch {
	case len(categorical) >= 1 && len(numeric) >= 1:
		x := result.Columns[categorical[0]]
		y := result.Columns[numeric[0]]
		charts = append(charts, Chart{
			Type:    Bar,
			Title:   fmt.Sprintf("%s by %s", y, x),
			XColumn: x,
			YColumn: y,
		})
		if distinctValues(result, categorical[0]) <= pieMaxCategories {
			charts = append(charts, Chart{
				Type:    Pie,
				Title:   fmt.Sprintf("%s share by %s", y, x),
				XColumn: x,
				YColumn: y,
			})
		}
	case len(numeric) >= 2:
		x := result.Columns[numeric[0]]
		y := result.Columns[numeric[1]]
		charts = append(charts, Chart{
			Type:    Scatter,
			Title:   fmt.Sprintf("%s vs %s", y, x),
			XColumn: x,
			YColumn: y,
		})
	case len(numeric) == 1:
		col := result.Columns[numeric[0]]
		charts = append(charts, Chart{
			Type:    Histogram,
			Title:   fmt.Sprintf("Distribution of %s", col),
			XColumn: col,
		})
	}

	if len(charts) > 0 {
		logging.Get(logging.CategoryViz).Debug("Suggested %d chart(s) for %d column(s)",
			len(charts), len(result.Columns))
	}
	return charts
}

// columnIsNumeric reports whether every non-NULL value in column i
// parses as a number. A column of only NULLs is not numeric.
func columnIsNumeric(result *db.Result, i int) bool {
	seen := false
	for _, row := range result.Rows {
		v := row[i]
		if v == "NULL" || v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func distinctValues(result *db.Result, i int) int {
	set := make(map[string]struct{}, len(result.Rows))
	for _, row := range result.Rows {
		set[row[i]] = struct{}{}
	}
	return len(set)
}
