// Package proxy maintains a round-robin pool of upstream proxies with
// per-proxy health scoring.
package proxy

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 2 * time.Minute

	// latencySmoothing is the EMA factor applied to observed latencies.
	latencySmoothing = 0.2
)

// Health is a snapshot of one proxy's rolling health record.
type Health struct {
	URL                 string
	Successes           int
	Failures            int
	ConsecutiveFailures int
	AvgLatency          time.Duration
	CooldownUntil       time.Time
}

type entry struct {
	url                 string
	successes           int
	failures            int
	consecutiveFailures int
	avgLatencyMs        float64
	cooldownUntil       time.Time
}

// Manager rotates through a proxy pool, skipping proxies in cooldown. The
// pool may be empty, in which case Acquire reports no proxy and callers
// fetch directly.
type Manager struct {
	mu               sync.Mutex
	entries          []*entry
	next             int
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

// Option adjusts Manager construction.
type Option func(*Manager)

// WithFailureThreshold sets how many consecutive failures put a proxy in
// cooldown.
func WithFailureThreshold(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.failureThreshold = n
		}
	}
}

// WithCooldown sets how long an unhealthy proxy is skipped.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cooldown = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager from a list of proxy URLs.
func NewManager(urls []string, opts ...Option) *Manager {
	m := &Manager{
		failureThreshold: defaultFailureThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		m.entries = append(m.entries, &entry{url: u})
	}
	return m
}

// ParsePool splits a comma-separated proxy pool string into URLs.
func ParsePool(pool string) []string {
	if strings.TrimSpace(pool) == "" {
		return nil
	}
	parts := strings.Split(pool, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// Size returns the number of configured proxies.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Acquire returns the next healthy proxy URL in round-robin order. ok is
// false when the pool is empty or every proxy is cooling down.
func (m *Manager) Acquire() (url string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if n == 0 {
		return "", false
	}
	now := m.now()
	for i := 0; i < n; i++ {
		e := m.entries[m.next%n]
		m.next++
		if e.cooldownUntil.After(now) {
			continue
		}
		return e.url, true
	}
	return "", false
}

// ReportSuccess records a successful request through the proxy. The
// consecutive-failure count decays by one rather than resetting, so a flaky
// proxy regains trust incrementally.
func (m *Manager) ReportSuccess(url string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.find(url)
	if e == nil {
		return
	}
	e.successes++
	if e.consecutiveFailures > 0 {
		e.consecutiveFailures--
	}
	ms := float64(latency.Milliseconds())
	if e.avgLatencyMs == 0 {
		e.avgLatencyMs = ms
	} else {
		e.avgLatencyMs = latencySmoothing*ms + (1-latencySmoothing)*e.avgLatencyMs
	}
}

// ReportFailure records a failed request through the proxy and starts a
// cooldown once the consecutive-failure threshold is crossed.
func (m *Manager) ReportFailure(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.find(url)
	if e == nil {
		return
	}
	e.failures++
	e.consecutiveFailures++
	if e.consecutiveFailures >= m.failureThreshold {
		e.cooldownUntil = m.now().Add(m.cooldown)
	}
}

// Snapshot returns health records for every proxy in the pool.
func (m *Manager) Snapshot() []Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Health, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, Health{
			URL:                 e.url,
			Successes:           e.successes,
			Failures:            e.failures,
			ConsecutiveFailures: e.consecutiveFailures,
			AvgLatency:          time.Duration(e.avgLatencyMs) * time.Millisecond,
			CooldownUntil:       e.cooldownUntil,
		})
	}
	return out
}

func (m *Manager) find(url string) *entry {
	for _, e := range m.entries {
		if e.url == url {
			return e
		}
	}
	return nil
}
