package conversation

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"sqltalk/internal/embedding"
	"sqltalk/internal/intent"
	"sqltalk/internal/logging"
)

// Method identifies which detection path produced a result.
type Method string

const (
	// MethodSemantic means embeddings were used for context similarity
	// and intent classification.
	MethodSemantic Method = "semantic"
	// MethodPatternFallback means detection ran on curated phrase
	// matching only, because no embedding capability was available.
	MethodPatternFallback Method = "pattern_fallback"
)

// Detection is the transient result of one follow-up decision. It is
// consumed immediately by the enhancer and not persisted.
type Detection struct {
	IsFollowup bool
	Confidence float64
	Intent     intent.Intent
	Method     Method
}

// DetectorConfig holds the tunables of the decision procedure. The
// threshold governs the precision/recall trade-off and is deliberately a
// construction parameter, not a constant buried in the scoring code.
type DetectorConfig struct {
	// Threshold above which a message is judged a follow-up. It can be
	// retuned later with SetThreshold.
	Threshold float64
	// CompareWindow is how many recent exchanges to compare against.
	CompareWindow int
	// CompareAnswerChars is how much of a stored answer goes into the
	// comparison text.
	CompareAnswerChars int
}

// DefaultDetectorConfig returns the calibrated defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:          0.4,
		CompareWindow:      3,
		CompareAnswerChars: 300,
	}
}

// Scoring weights. These are calibration defaults, not hard contracts;
// the decision threshold is the supported tuning knob.
const (
	weightContext     = 0.4
	weightIntent      = 0.4
	intentBoost       = 0.8  // multiplier for follow-up-like intents
	intentPenalty     = 0.6  // multiplier against new-topic intents
	refBoostStep      = 0.1  // per reference-word hit
	refBoostCap       = 0.2  // max reference-signal contribution
	corroborationBar  = 0.25 // context similarity needed for the bonus
	corroborationGain = 0.15 // bonus when intent and context agree
	fallbackConf      = 0.6  // fixed confidence of a pattern match
)

// Detector combines context similarity, intent classification and a
// reference-word scan into one follow-up decision. It degrades to pure
// pattern matching when no embedding capability is configured; degraded
// capability is never an error.
type Detector struct {
	engine     embedding.Engine
	classifier *intent.Classifier
	catalog    *intent.Catalog
	cfg        DetectorConfig

	// threshold holds math.Float64bits of the live decision threshold
	// so config reloads can retune it while turns are in flight.
	threshold atomic.Uint64
}

// NewDetector creates a detector. engine may be nil or the null engine;
// classifier may be nil, in which case one is built over the same engine
// and catalog. A nil catalog uses the default phrase table.
func NewDetector(engine embedding.Engine, classifier *intent.Classifier, catalog *intent.Catalog, cfg DetectorConfig) *Detector {
	if catalog == nil {
		catalog = intent.DefaultCatalog()
	}
	if classifier == nil {
		classifier = intent.NewClassifier(engine, catalog)
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = DefaultDetectorConfig().Threshold
	}
	if cfg.CompareWindow <= 0 {
		cfg.CompareWindow = DefaultDetectorConfig().CompareWindow
	}
	if cfg.CompareAnswerChars <= 0 {
		cfg.CompareAnswerChars = DefaultDetectorConfig().CompareAnswerChars
	}
	d := &Detector{
		engine:     engine,
		classifier: classifier,
		catalog:    catalog,
		cfg:        cfg,
	}
	d.SetThreshold(cfg.Threshold)
	return d
}

// Threshold returns the live decision threshold.
func (d *Detector) Threshold() float64 {
	return math.Float64frombits(d.threshold.Load())
}

// SetThreshold retunes the decision threshold. Safe to call while other
// goroutines are inside Detect; out-of-range values are ignored.
func (d *Detector) SetThreshold(threshold float64) {
	if threshold <= 0 || threshold >= 1 {
		return
	}
	d.threshold.Store(math.Float64bits(threshold))
}

// Detect classifies message against the store. The first message of a
// conversation (empty store) is never a follow-up. An empty message is
// valid input and deterministically yields not-a-follow-up.
func (d *Detector) Detect(ctx context.Context, message string, store *ContextStore) Detection {
	method := MethodSemantic
	if !d.semanticAvailable() {
		method = MethodPatternFallback
	}

	if store == nil || store.IsEmpty() {
		return Detection{IsFollowup: false, Confidence: 0, Intent: intent.NewTopic, Method: method}
	}
	if strings.TrimSpace(message) == "" {
		return Detection{IsFollowup: false, Confidence: 0, Intent: intent.NewTopic, Method: method}
	}

	if method == MethodPatternFallback {
		return d.detectByPattern(message, store)
	}

	det, ok := d.detectSemantic(ctx, message, store)
	if !ok {
		// Mid-turn embed failure is a degraded mode, not an error.
		logging.Detector("Semantic path unavailable for this turn, using pattern fallback")
		return d.detectByPattern(message, store)
	}
	return det
}

func (d *Detector) semanticAvailable() bool {
	return d.engine != nil && d.engine.Available()
}

// detectSemantic computes the three signals and combines them. Returns
// ok=false when embedding calls fail so the caller can fall back.
func (d *Detector) detectSemantic(ctx context.Context, message string, store *ContextStore) (Detection, bool) {
	msgVec, err := d.engine.Embed(ctx, message)
	if err != nil {
		logging.Get(logging.CategoryDetector).Warn("Message embed failed: %v", err)
		return Detection{}, false
	}

	// Signal 1: max similarity against the recent comparison window.
	ctxSim := 0.0
	for _, ex := range store.Recent(d.cfg.CompareWindow) {
		comparison := ex.UserMessage + " " + truncate(ex.Answer, d.cfg.CompareAnswerChars)
		exVec, err := d.engine.Embed(ctx, comparison)
		if err != nil {
			logging.Get(logging.CategoryDetector).Warn("Context embed failed: %v", err)
			return Detection{}, false
		}
		sim, err := embedding.CosineSimilarity(msgVec, exVec)
		if err != nil {
			continue
		}
		if sim > ctxSim {
			ctxSim = sim
		}
	}

	// Signal 2: intent classification, asymmetric evidence.
	detected, intentConf := d.classifier.Classify(ctx, message)

	// Signal 3: reference-word scan, small bounded boost.
	refHits := d.catalog.CountReferenceWords(message)
	refBoost := refBoostStep * float64(refHits)
	if refBoost > refBoostCap {
		refBoost = refBoostCap
	}

	score := weightContext * ctxSim
	if detected != intent.NewTopic {
		score += weightIntent * intentBoost * intentConf
	} else {
		score -= weightIntent * intentPenalty * intentConf
	}
	score += refBoost
	if detected != intent.NewTopic && ctxSim > corroborationBar {
		score += corroborationGain
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	det := Detection{
		IsFollowup: score > d.Threshold(),
		Confidence: score,
		Intent:     detected,
		Method:     MethodSemantic,
	}
	logging.DetectorDebug("semantic: ctxSim=%.3f intent=%s/%.3f refHits=%d -> conf=%.3f followup=%v",
		ctxSim, detected, intentConf, refHits, score, det.IsFollowup)
	return det, true
}

// detectByPattern is the curated-phrase path: a phrase hit or a reference
// word against a non-empty store yields a follow-up at fixed moderate
// confidence.
func (d *Detector) detectByPattern(message string, store *ContextStore) Detection {
	guessed := d.catalog.GuessIntent(message)

	_, phraseHit := d.catalog.MatchFollowupPhrase(message)
	refHits := d.catalog.CountReferenceWords(message)

	if phraseHit || refHits >= 2 {
		return Detection{
			IsFollowup: true,
			Confidence: fallbackConf,
			Intent:     guessed,
			Method:     MethodPatternFallback,
		}
	}

	conf := refBoostStep * float64(refHits)
	return Detection{
		IsFollowup: false,
		Confidence: conf,
		Intent:     guessed,
		Method:     MethodPatternFallback,
	}
}

// truncate cuts s to at most n bytes without adding a marker; the
// enhancer adds its own ellipsis where one is user-visible.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
