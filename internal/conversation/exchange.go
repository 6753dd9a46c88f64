// Package conversation implements the follow-up detection and context
// management engine: a bounded memory of recent exchanges, a detector that
// decides whether a message depends on that memory, and an enhancer that
// injects exactly the context a follow-up needs into the downstream
// SQL-generation prompt.
package conversation

import "time"

// Exchange is one recorded user-message/assistant-answer turn plus
// metadata. Exchanges are immutable after creation and owned exclusively
// by the ContextStore that recorded them.
type Exchange struct {
	Timestamp   time.Time
	UserMessage string
	Answer      string
	SQL         string
	ChartCount  int
	KeyFacts    []string
}

// ContextStore is a bounded, ordered buffer of recent exchanges.
// Insertion order equals chronological order; once capacity is exceeded
// the oldest exchange is evicted. The store itself is not synchronized:
// the owning Session serializes access.
type ContextStore struct {
	window    int
	exchanges []Exchange
}

// NewContextStore creates a store that retains at most window exchanges.
// A window below 1 is coerced to 1.
func NewContextStore(window int) *ContextStore {
	if window < 1 {
		window = 1
	}
	return &ContextStore{window: window}
}

// Append adds an exchange to the end, evicting from the front until the
// store is back within its window. Always succeeds.
func (s *ContextStore) Append(ex Exchange) {
	s.exchanges = append(s.exchanges, ex)
	if over := len(s.exchanges) - s.window; over > 0 {
		s.exchanges = append([]Exchange(nil), s.exchanges[over:]...)
	}
}

// Recent returns the last min(n, Len) exchanges in chronological order.
// The returned slice is a copy; callers cannot mutate stored history.
func (s *ContextStore) Recent(n int) []Exchange {
	if n <= 0 || len(s.exchanges) == 0 {
		return nil
	}
	if n > len(s.exchanges) {
		n = len(s.exchanges)
	}
	out := make([]Exchange, n)
	copy(out, s.exchanges[len(s.exchanges)-n:])
	return out
}

// Len returns the number of stored exchanges.
func (s *ContextStore) Len() int {
	return len(s.exchanges)
}

// IsEmpty reports whether the store holds no exchanges. The first message
// of a conversation can never be a follow-up, so the detector
// short-circuits on this.
func (s *ContextStore) IsEmpty() bool {
	return len(s.exchanges) == 0
}

// Snapshot returns a copy of the full history in chronological order.
func (s *ContextStore) Snapshot() []Exchange {
	return s.Recent(len(s.exchanges))
}

// Window returns the configured capacity.
func (s *ContextStore) Window() int {
	return s.window
}
