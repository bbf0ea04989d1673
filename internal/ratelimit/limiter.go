// Package ratelimit throttles MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Rule is the budget of one tool: a sustained rate and a burst that is
// also the initial allowance.
type Rule struct {
	PerMinute float64
	Burst     int
}

// DefaultRules budgets the MCP tools by cost. Replication integrates a
// whole job, so it gets the smallest budget.
var DefaultRules = map[string]Rule{
	"replicate_job":      {PerMinute: 6, Burst: 2},
	"run_reference_test": {PerMinute: 12, Burst: 3},
	"describe_foodweb":   {PerMinute: 30, Burst: 5},
	"list_jobs":          {PerMinute: 60, Burst: 10},
}

// LimitError reports a throttled call.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter holds one bucket per ruled tool. Tools without a rule are never
// throttled. A nil *Limiter allows everything. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a limiter for rules. The map is copied.
func New(rules map[string]Rule) *Limiter {
	l := &Limiter{
		rules:   make(map[string]Rule, len(rules)),
		buckets: make(map[string]*bucket, len(rules)),
		now:     time.Now,
	}
	for tool, r := range rules {
		l.rules[tool] = r
	}
	return l
}

// Check takes one token for tool or returns a *LimitError.
func (l *Limiter) Check(tool string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.rules[tool]
	if !ok {
		return nil
	}
	now := l.now()
	b := l.buckets[tool]
	if b == nil {
		b = &bucket{tokens: float64(rule.Burst), last: now}
		l.buckets[tool] = b
	}

	perSecond := rule.PerMinute / 60
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(b.tokens+dt*perSecond, float64(rule.Burst))
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return nil
	}

	wait := time.Duration(float64(time.Second) * (1 - b.tokens) / perSecond)
	if perSecond <= 0 {
		wait = time.Minute
	}
	return &LimitError{Tool: tool, RetryAfter: wait}
}

// Allow reports whether a call of tool may proceed, taking a token if so.
func (l *Limiter) Allow(tool string) bool {
	return l.Check(tool) == nil
}
