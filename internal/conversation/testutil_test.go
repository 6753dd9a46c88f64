package conversation

import (
	"context"
	"errors"

	"sqltalk/internal/db"
	"sqltalk/internal/intent"
	"sqltalk/internal/viz"
)

const scriptedDim = 8

// Axis assignments for the scripted engine. Each intent's example
// phrases map to a one-hot vector so the classifier's centroids are
// known by construction; axisContext is reserved for conversation text.
const (
	axisClarification = iota
	axisDrillDown
	axisVisualization
	axisComparison
	axisAnalysis
	axisNewTopic
	axisContext
)

// scriptedEngine returns pre-registered vectors by exact text. Unknown
// text embeds to the zero vector, which cosine-compares to 0 against
// everything. This makes every similarity in a test a constructed value
// rather than a property of a real model.
type scriptedEngine struct {
	vecs map[string][]float32
	err  error
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{vecs: make(map[string][]float32)}
}

// withIntentAxes registers every catalog example phrase on its intent's
// axis, so each intent centroid is exactly that axis.
func (e *scriptedEngine) withIntentAxes(catalog *intent.Catalog) *scriptedEngine {
	for i, in := range catalog.Intents() {
		for _, example := range catalog.Examples[in] {
			e.set(example, axis(i))
		}
	}
	return e
}

func (e *scriptedEngine) set(text string, vec []float32) {
	e.vecs[text] = vec
}

func (e *scriptedEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vecs[text]; ok {
		return v, nil
	}
	return make([]float32, scriptedDim), nil
}

func (e *scriptedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *scriptedEngine) Dimensions() int { return scriptedDim }
func (e *scriptedEngine) Name() string    { return "scripted" }
func (e *scriptedEngine) Available() bool { return true }

// axis returns the one-hot unit vector for index i.
func axis(i int) []float32 {
	v := make([]float32, scriptedDim)
	v[i] = 1
	return v
}

// blend builds a vector from weighted axes.
func blend(weights map[int]float32) []float32 {
	v := make([]float32, scriptedDim)
	for i, w := range weights {
		v[i] = w
	}
	return v
}

// comparisonText mirrors how the detector renders a stored exchange for
// similarity scoring.
func comparisonText(ex Exchange, answerChars int) string {
	return ex.UserMessage + " " + truncate(ex.Answer, answerChars)
}

// Fake collaborators for session tests.

type fakeGenerator struct {
	sql        string
	err        error
	lastPrompt string
	lastSchema string
	calls      int
}

func (g *fakeGenerator) GenerateSQL(_ context.Context, prompt, schema string) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastSchema = schema
	if g.err != nil {
		return "", g.err
	}
	return g.sql, nil
}

type fakeExecutor struct {
	result *db.Result
	err    error
	schema string
}

func (e *fakeExecutor) Query(_ context.Context, _ string) (*db.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *fakeExecutor) DescribeSchema(_ context.Context) (string, error) {
	return e.schema, nil
}

type fakeVisualizer struct {
	charts []viz.Chart
}

func (v *fakeVisualizer) Suggest(_ *db.Result) []viz.Chart {
	return v.charts
}

var errBoom = errors.New("boom")
