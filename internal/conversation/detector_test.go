package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqltalk/internal/embedding"
	"sqltalk/internal/intent"
)

// topArtists is the prior exchange shared by the follow-up scenarios.
var topArtists = Exchange{
	UserMessage: "What are the top 5 selling artists?",
	Answer:      "1. AC/DC with 340 sales 2. U2 with 280 sales",
	SQL:         "SELECT artist, SUM(total) FROM invoices GROUP BY artist ORDER BY 2 DESC LIMIT 5",
}

func storeWith(exchanges ...Exchange) *ContextStore {
	store := NewContextStore(5)
	for _, ex := range exchanges {
		store.Append(ex)
	}
	return store
}

func semanticDetector(t *testing.T, engine *scriptedEngine) *Detector {
	t.Helper()
	catalog := intent.DefaultCatalog()
	engine.withIntentAxes(catalog)
	return NewDetector(engine, intent.NewClassifier(engine, catalog), catalog, DefaultDetectorConfig())
}

func TestDetectEmptyStoreNeverFollowup(t *testing.T) {
	d := semanticDetector(t, newScriptedEngine())

	for _, msg := range []string{
		"What are the top 5 selling artists?",
		"tell me more about that",
		"",
	} {
		det := d.Detect(context.Background(), msg, NewContextStore(5))
		assert.False(t, det.IsFollowup, "message %q", msg)
		assert.Zero(t, det.Confidence)
	}
}

func TestDetectEmptyMessage(t *testing.T) {
	d := semanticDetector(t, newScriptedEngine())
	det := d.Detect(context.Background(), "   ", storeWith(topArtists))
	assert.False(t, det.IsFollowup)
	assert.Zero(t, det.Confidence)
	assert.Equal(t, intent.NewTopic, det.Intent)
}

func TestDetectSemanticFollowup(t *testing.T) {
	engine := newScriptedEngine()
	d := semanticDetector(t, engine)

	message := "Tell me more about the top artist"
	engine.set(message, blend(map[int]float32{axisDrillDown: 0.8, axisContext: 0.6}))
	engine.set(comparisonText(topArtists, 300), axis(axisContext))

	det := d.Detect(context.Background(), message, storeWith(topArtists))

	require.True(t, det.IsFollowup)
	assert.Equal(t, MethodSemantic, det.Method)
	assert.Contains(t, []intent.Intent{intent.DrillDown, intent.Clarification}, det.Intent)
	// ctxSim 0.6, drill_down confidence 0.8, two reference words, plus
	// the corroboration bonus, all constructed above.
	assert.InDelta(t, 0.846, det.Confidence, 1e-6)
}

func TestDetectSemanticNewTopic(t *testing.T) {
	engine := newScriptedEngine()
	d := semanticDetector(t, engine)

	message := "List all genres"
	engine.set(message, axis(axisNewTopic))
	engine.set(comparisonText(topArtists, 300), axis(axisContext))

	det := d.Detect(context.Background(), message, storeWith(topArtists))

	assert.False(t, det.IsFollowup)
	assert.Equal(t, intent.NewTopic, det.Intent)
	assert.Zero(t, det.Confidence)
}

func TestDetectThresholdConfigurable(t *testing.T) {
	engine := newScriptedEngine()
	catalog := intent.DefaultCatalog()
	engine.withIntentAxes(catalog)
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 0.9
	d := NewDetector(engine, intent.NewClassifier(engine, catalog), catalog, cfg)

	message := "Tell me more about the top artist"
	engine.set(message, blend(map[int]float32{axisDrillDown: 0.8, axisContext: 0.6}))
	engine.set(comparisonText(topArtists, 300), axis(axisContext))

	det := d.Detect(context.Background(), message, storeWith(topArtists))
	assert.False(t, det.IsFollowup, "0.846 must not clear a 0.9 threshold")
	assert.InDelta(t, 0.846, det.Confidence, 1e-6)
}

func TestDetectThresholdRetunedLive(t *testing.T) {
	engine := newScriptedEngine()
	catalog := intent.DefaultCatalog()
	engine.withIntentAxes(catalog)
	cfg := DefaultDetectorConfig()
	cfg.Threshold = 0.9
	d := NewDetector(engine, intent.NewClassifier(engine, catalog), catalog, cfg)

	message := "Tell me more about the top artist"
	engine.set(message, blend(map[int]float32{axisDrillDown: 0.8, axisContext: 0.6}))
	engine.set(comparisonText(topArtists, 300), axis(axisContext))

	store := storeWith(topArtists)
	require.False(t, d.Detect(context.Background(), message, store).IsFollowup)

	// A config reload lowers the threshold; the same turn now clears it.
	d.SetThreshold(0.4)
	assert.Equal(t, 0.4, d.Threshold())
	assert.True(t, d.Detect(context.Background(), message, store).IsFollowup)

	// Out-of-range values are ignored rather than applied.
	d.SetThreshold(0)
	d.SetThreshold(1.5)
	assert.Equal(t, 0.4, d.Threshold())
}

func TestDetectPatternFallbackReferenceScan(t *testing.T) {
	d := NewDetector(embedding.NewNullEngine(), nil, nil, DefaultDetectorConfig())

	det := d.Detect(context.Background(), "What about the second one?", storeWith(topArtists))

	require.True(t, det.IsFollowup)
	assert.Equal(t, MethodPatternFallback, det.Method)
	assert.InDelta(t, 0.6, det.Confidence, 1e-9)
}

func TestDetectPatternFallbackNewTopic(t *testing.T) {
	d := NewDetector(embedding.NewNullEngine(), nil, nil, DefaultDetectorConfig())

	det := d.Detect(context.Background(), "List all genres", storeWith(topArtists))

	assert.False(t, det.IsFollowup)
	assert.Equal(t, MethodPatternFallback, det.Method)
}

func TestDetectEmbedFailureDegradesToPattern(t *testing.T) {
	engine := newScriptedEngine()
	d := semanticDetector(t, engine)
	engine.err = errBoom

	det := d.Detect(context.Background(), "tell me more about that", storeWith(topArtists))

	require.True(t, det.IsFollowup)
	assert.Equal(t, MethodPatternFallback, det.Method)
	assert.InDelta(t, 0.6, det.Confidence, 1e-9)
}

// Known-hard cases: pronoun and keyword heuristics misjudge these two
// messages in predictable directions. They are pinned here as documented
// behavior, not tuned away.
func TestDetectKnownHardCases(t *testing.T) {
	d := NewDetector(embedding.NewNullEngine(), nil, nil, DefaultDetectorConfig())
	store := storeWith(topArtists)

	t.Run("tell me more about the top artist", func(t *testing.T) {
		det := d.Detect(context.Background(), "Tell me more about the top artist", store)
		assert.True(t, det.IsFollowup, "phrase scan must catch the explicit follow-up marker")
	})

	t.Run("show me all customers", func(t *testing.T) {
		// A genuinely new question that happens to contain "show me".
		// The fallback path accepts this false positive; resolving it
		// needs the semantic path.
		det := d.Detect(context.Background(), "Show me all customers", store)
		assert.True(t, det.IsFollowup)
	})
}
