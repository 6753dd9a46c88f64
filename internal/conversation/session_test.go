package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqltalk/internal/db"
	"sqltalk/internal/embedding"
	"sqltalk/internal/viz"
)

func patternDetector() *Detector {
	return NewDetector(embedding.NewNullEngine(), nil, nil, DefaultDetectorConfig())
}

func newTestSession(gen Generator, exec Executor, vis Visualizer) *Session {
	return NewSession("test", patternDetector(), DefaultSessionConfig(), gen, exec, vis)
}

func TestSessionSubmitRecordsTurn(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT artist, SUM(total) FROM invoices GROUP BY artist"}
	exec := &fakeExecutor{
		result: &db.Result{
			Columns: []string{"artist", "sales"},
			Rows:    [][]string{{"AC/DC", "340"}},
		},
		schema: "CREATE TABLE invoices (artist TEXT, total REAL);",
	}
	vis := &fakeVisualizer{charts: []viz.Chart{{Type: viz.Bar, Title: "sales by artist"}}}
	s := newTestSession(gen, exec, vis)

	res, err := s.Submit(context.Background(), "What are the top selling artists?")
	require.NoError(t, err)

	assert.False(t, res.IsFollowup, "first turn can never be a follow-up")
	assert.Contains(t, res.Answer, "AC/DC")
	assert.Equal(t, gen.sql, res.SQL)
	assert.Len(t, res.Charts, 1)
	assert.Equal(t, gen.lastSchema, exec.schema)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "What are the top selling artists?", snap[0].UserMessage)
	assert.Equal(t, 1, snap[0].ChartCount)
	assert.NotEmpty(t, snap[0].KeyFacts)
	assert.False(t, snap[0].Timestamp.IsZero(), "recorded exchanges carry their wall-clock time")
}

func TestSessionKeyFactsComeFromAnswerOnly(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT artist, SUM(total) FROM invoices GROUP BY artist"}
	exec := &fakeExecutor{
		result: &db.Result{
			Columns: []string{"artist", "sales"},
			Rows:    [][]string{{"AC/DC", "340"}},
		},
	}
	s := newTestSession(gen, exec, nil)

	_, err := s.Submit(context.Background(), "List the top 42 artists from Hamburg")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Contains(t, snap[0].KeyFacts, "340")
	assert.NotContains(t, snap[0].KeyFacts, "42", "question text does not leak into key facts")
	assert.NotContains(t, snap[0].KeyFacts, "Hamburg")
}

func TestSessionRestoreReplacesHistory(t *testing.T) {
	s := newTestSession(&fakeGenerator{sql: "SELECT 1"}, nil, nil)

	_, err := s.Submit(context.Background(), "throwaway question")
	require.NoError(t, err)

	saved := []Exchange{
		{UserMessage: "What are the top selling artists?", Answer: "AC/DC leads with 340 sales."},
		{UserMessage: "What about Berlin?", Answer: "Berlin contributes 12 sales."},
	}
	s.Restore(saved)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "What are the top selling artists?", snap[0].UserMessage)
	assert.Equal(t, "What about Berlin?", snap[1].UserMessage)
}

func TestSessionFollowupGetsEnhancedPrompt(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT 1"}
	exec := &fakeExecutor{result: &db.Result{Columns: []string{"n"}, Rows: [][]string{{"1"}}}}
	s := newTestSession(gen, exec, nil)

	_, err := s.Submit(context.Background(), "What are the top selling artists?")
	require.NoError(t, err)

	res, err := s.Submit(context.Background(), "tell me more about that")
	require.NoError(t, err)

	require.True(t, res.IsFollowup)
	assert.Equal(t, MethodPatternFallback, res.Method)
	assert.True(t, strings.HasPrefix(gen.lastPrompt, "Previous conversation context:"))
	assert.Contains(t, gen.lastPrompt, "Current question: tell me more about that")

	// The recorded history holds the raw message, not the prompt.
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "tell me more about that", snap[1].UserMessage)
}

func TestSessionExecutionFailureIsRecorded(t *testing.T) {
	gen := &fakeGenerator{sql: "SELECT broken"}
	exec := &fakeExecutor{err: errBoom}
	s := newTestSession(gen, exec, nil)

	res, err := s.Submit(context.Background(), "What are the top selling artists?")
	require.NoError(t, err, "downstream failures never escape Submit")

	assert.NotEmpty(t, res.Answer)
	assert.Contains(t, res.Answer, "failed to execute")
	assert.Equal(t, "SELECT broken", res.SQL)
	assert.Equal(t, 1, s.Len(), "the failed turn is still recorded")
}

func TestSessionGenerationFailureIsRecorded(t *testing.T) {
	gen := &fakeGenerator{err: errBoom}
	s := newTestSession(gen, nil, nil)

	res, err := s.Submit(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "could not turn")
	assert.Empty(t, res.SQL)
	assert.Equal(t, 1, s.Len())
}

func TestSessionWithoutCollaborators(t *testing.T) {
	s := newTestSession(nil, nil, nil)

	res, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "No SQL generator")
	assert.Equal(t, 1, s.Len())
}

func TestSessionCancelledContext(t *testing.T) {
	s := newTestSession(&fakeGenerator{sql: "SELECT 1"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, 0, s.Len(), "a cancelled turn is not recorded")
}

func TestSessionsRunInParallel(t *testing.T) {
	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		s := NewSession(fmt.Sprintf("s%d", i), patternDetector(), DefaultSessionConfig(),
			&fakeGenerator{sql: "SELECT 1"},
			&fakeExecutor{result: &db.Result{Columns: []string{"n"}, Rows: [][]string{{"1"}}}},
			nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := s.Submit(context.Background(), fmt.Sprintf("question %d", j)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
