package intent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"sqltalk/internal/embedding"
	"sqltalk/internal/logging"
)

// Classifier maps free text to one of the fixed intents by
// nearest-centroid similarity. Centroids are computed once, lazily, from
// the catalog's example phrases and are read-only afterwards, so a single
// Classifier is safe to share across all conversation sessions.
type Classifier struct {
	engine  embedding.Engine
	catalog *Catalog

	warmupOnce sync.Once
	warmupErr  error
	centroids  map[Intent][]float32
}

// NewClassifier creates a classifier backed by the given embedding engine.
// A nil catalog uses the default phrase table.
func NewClassifier(engine embedding.Engine, catalog *Catalog) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Classifier{
		engine:  engine,
		catalog: catalog,
	}
}

// Available reports whether semantic classification can run at all.
func (c *Classifier) Available() bool {
	return c.engine != nil && c.engine.Available()
}

// Classify returns the nearest intent and its similarity score as
// confidence. An empty message deterministically yields (NewTopic, 0).
// When the embedding capability is missing or fails, Classify falls back
// to the keyword heuristic with zero confidence; it never returns an
// error for degraded capability, only for cancelled contexts.
func (c *Classifier) Classify(ctx context.Context, message string) (Intent, float64) {
	if message == "" {
		return NewTopic, 0
	}
	if !c.Available() {
		return c.catalog.GuessIntent(message), 0
	}

	if err := c.warmup(ctx); err != nil {
		logging.Get(logging.CategoryIntent).Warn("Centroid warmup failed, using keyword heuristic: %v", err)
		return c.catalog.GuessIntent(message), 0
	}

	msgVec, err := c.engine.Embed(ctx, message)
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("Message embed failed, using keyword heuristic: %v", err)
		return c.catalog.GuessIntent(message), 0
	}

	best := NewTopic
	bestScore := -1.0
	for intent, centroid := range c.centroids {
		score, err := embedding.CosineSimilarity(msgVec, centroid)
		if err != nil {
			continue
		}
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}
	if bestScore < 0 {
		return c.catalog.GuessIntent(message), 0
	}

	logging.IntentDebug("Classified %q as %s (%.3f)", message, best, bestScore)
	return best, bestScore
}

// warmup embeds every intent's example phrases once and stores the mean
// vector per intent. Intents are embedded concurrently; within one intent
// the engine's batch call is used.
func (c *Classifier) warmup(ctx context.Context) error {
	c.warmupOnce.Do(func() {
		timer := logging.StartTimer(logging.CategoryIntent, "centroid warmup")
		defer timer.Stop()

		centroids := make(map[Intent][]float32, len(c.catalog.Examples))
		var mu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		for _, intent := range c.catalog.Intents() {
			examples := c.catalog.Examples[intent]
			if len(examples) == 0 {
				continue
			}
			intent := intent
			g.Go(func() error {
				vectors, err := c.engine.EmbedBatch(gctx, examples)
				if err != nil {
					return err
				}
				mu.Lock()
				centroids[intent] = embedding.Mean(vectors)
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			c.warmupErr = err
			return
		}
		c.centroids = centroids
		logging.Intent("Intent centroids ready: %d intents", len(centroids))
	})
	return c.warmupErr
}
