package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sqltalk/internal/db"
	"sqltalk/internal/intent"
	"sqltalk/internal/logging"
	"sqltalk/internal/viz"
)

// Generator turns an enhanced prompt plus a schema description into a
// single SQL statement.
type Generator interface {
	GenerateSQL(ctx context.Context, prompt, schema string) (string, error)
}

// Executor runs generated statements against the target database.
type Executor interface {
	Query(ctx context.Context, sqlText string) (*db.Result, error)
	DescribeSchema(ctx context.Context) (string, error)
}

// Visualizer proposes chart descriptors for an executed result.
type Visualizer interface {
	Suggest(result *db.Result) []viz.Chart
}

// Result is what one turn hands back to the caller. Downstream failures
// are reported inside Answer, not as errors.
type Result struct {
	Answer     string
	SQL        string
	Charts     []viz.Chart
	IsFollowup bool
	Confidence float64
	Intent     intent.Intent
	Method     Method
}

// SessionConfig carries the per-session tunables.
type SessionConfig struct {
	Window      int
	MaxKeyFacts int
	// MaxRows bounds how many result rows go into the recorded answer.
	MaxRows int
	Detector DetectorConfig
	Enhancer EnhancerConfig
}

// DefaultSessionConfig returns the calibrated defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Window:      5,
		MaxKeyFacts: 6,
		MaxRows:     10,
		Detector:    DefaultDetectorConfig(),
		Enhancer:    DefaultEnhancerConfig(),
	}
}

// Session owns one conversation: a bounded context store plus the per-turn
// pipeline of detection, enhancement, delegation and recording. One Submit
// runs at a time; independent sessions are fully parallel.
type Session struct {
	id       string
	detector *Detector
	enhancer *Enhancer
	cfg      SessionConfig

	generator  Generator
	executor   Executor
	visualizer Visualizer

	mu     sync.Mutex
	store  *ContextStore
	schema string // cached DescribeSchema output
}

// NewSession creates a session. generator, executor and visualizer may
// each be nil; the turn pipeline skips the missing stages and still
// records the exchange.
func NewSession(id string, detector *Detector, cfg SessionConfig, generator Generator, executor Executor, visualizer Visualizer) *Session {
	if cfg.Window <= 0 {
		cfg.Window = DefaultSessionConfig().Window
	}
	if cfg.MaxKeyFacts <= 0 {
		cfg.MaxKeyFacts = DefaultSessionConfig().MaxKeyFacts
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultSessionConfig().MaxRows
	}
	if detector == nil {
		detector = NewDetector(nil, nil, nil, cfg.Detector)
	}
	return &Session{
		id:         id,
		detector:   detector,
		enhancer:   NewEnhancer(cfg.Enhancer),
		cfg:        cfg,
		generator:  generator,
		executor:   executor,
		visualizer: visualizer,
		store:      NewContextStore(cfg.Window),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Submit runs one conversational turn. The returned error is non-nil only
// when ctx is already done; every downstream failure is folded into
// Result.Answer and the turn is recorded regardless, so history never
// silently drops a turn.
func (s *Session) Submit(ctx context.Context, message string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	det := s.detector.Detect(ctx, message, s.store)
	prompt := s.enhancer.Enhance(message, det, s.store)
	logging.Session("[%s] turn: followup=%v conf=%.3f intent=%s method=%s",
		s.id, det.IsFollowup, det.Confidence, det.Intent, det.Method)

	res := &Result{
		IsFollowup: det.IsFollowup,
		Confidence: det.Confidence,
		Intent:     det.Intent,
		Method:     det.Method,
	}
	s.runPipeline(ctx, prompt, res)

	facts := ExtractKeyFacts(res.Answer, s.cfg.MaxKeyFacts)
	s.store.Append(Exchange{
		Timestamp:   time.Now(),
		UserMessage: message,
		Answer:      res.Answer,
		SQL:         res.SQL,
		ChartCount:  len(res.Charts),
		KeyFacts:    facts,
	})
	return res, nil
}

// runPipeline delegates the prompt to generation, execution and chart
// suggestion, filling in res. Failures become descriptive answers.
func (s *Session) runPipeline(ctx context.Context, prompt string, res *Result) {
	if s.generator == nil {
		res.Answer = "No SQL generator is configured for this session."
		return
	}

	schema, err := s.describeSchema(ctx)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("[%s] schema lookup failed: %v", s.id, err)
	}

	sqlText, err := s.generator.GenerateSQL(ctx, prompt, schema)
	if err != nil {
		res.Answer = fmt.Sprintf("I could not turn that into a SQL query: %v", err)
		logging.Get(logging.CategorySession).Warn("[%s] generation failed: %v", s.id, err)
		return
	}
	res.SQL = sqlText

	if s.executor == nil {
		res.Answer = "Generated SQL:\n" + sqlText
		return
	}

	result, err := s.executor.Query(ctx, sqlText)
	if err != nil {
		res.Answer = fmt.Sprintf("The query failed to execute: %v", err)
		logging.Get(logging.CategorySession).Warn("[%s] execution failed: %v", s.id, err)
		return
	}
	res.Answer = result.Format(s.cfg.MaxRows)

	if s.visualizer != nil {
		res.Charts = s.visualizer.Suggest(result)
	}
}

func (s *Session) describeSchema(ctx context.Context) (string, error) {
	if s.executor == nil {
		return "", nil
	}
	if s.schema != "" {
		return s.schema, nil
	}
	schema, err := s.executor.DescribeSchema(ctx)
	if err != nil {
		return "", err
	}
	s.schema = schema
	return schema, nil
}

// Restore replaces the retained history with a previously captured
// snapshot, keeping at most the configured window of exchanges.
func (s *Session) Restore(history []Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = NewContextStore(s.cfg.Window)
	for _, ex := range history {
		s.store.Append(ex)
	}
}

// Snapshot returns a copy of the recorded history, oldest first.
func (s *Session) Snapshot() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Len reports how many exchanges are currently retained.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// History renders the retained exchanges as plain text, one block per
// exchange. Useful for UI surfaces and debugging.
func (s *Session) History() string {
	snap := s.Snapshot()
	if len(snap) == 0 {
		return "(no conversation yet)"
	}
	var b strings.Builder
	for i, ex := range snap {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, ex.UserMessage)
		if ex.Answer != "" {
			fmt.Fprintf(&b, "    %s\n", ex.Answer)
		}
	}
	return b.String()
}
