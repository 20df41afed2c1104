// Package fetch composes the transport layer, circuit breaker, proxy
// rotation and retry/backoff into the single fetch contract used by all
// source adapters.
package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/breaker"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/metrics"
	"github.com/chainboard/jobs-crawler/internal/proxy"
)

// Request describes one resilient fetch.
type Request struct {
	URL string
	// Source tags the request for error attribution.
	Source string
	// Timeout bounds a single attempt. Zero uses the client default.
	Timeout time.Duration
	// MaxRetries bounds total attempts. Zero uses the client default.
	MaxRetries int
	// BrowserHeaders sends a randomized browser-like header profile.
	BrowserHeaders bool
	// UseProxy routes attempts through the proxy pool when one is available.
	UseProxy bool
}

// CrawlLogger records attributed fetch failures. Append failures are
// swallowed: error logging must never fail a fetch.
type CrawlLogger interface {
	AppendCrawlLog(ctx context.Context, entry ingest.CrawlLogEntry) error
}

// Config controls Client defaults.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
}

// Client is the resilient fetch entry point. It never panics past the
// caller; every failure comes back as a typed *Error.
type Client struct {
	transport transport
	breakers  *breaker.Registry
	proxies   *proxy.Manager
	crawlLog  CrawlLogger
	archive   ingest.Archive
	clock     ingest.Clock
	logger    *zap.Logger
	cfg       Config
}

// Option adjusts Client construction.
type Option func(*Client)

// WithCrawlLogger attributes failures to a durable crawl log.
func WithCrawlLogger(l CrawlLogger) Option {
	return func(c *Client) { c.crawlLog = l }
}

// WithArchive stores successful payload bodies for later inspection.
func WithArchive(a ingest.Archive) Option {
	return func(c *Client) { c.archive = a }
}

// withTransport replaces the HTTP transport (tests).
func withTransport(t transport) Option {
	return func(c *Client) { c.transport = t }
}

// NewClient builds a Client around shared breaker and proxy state.
func NewClient(
	breakers *breaker.Registry,
	proxies *proxy.Manager,
	clock ingest.Clock,
	logger *zap.Logger,
	cfg Config,
	opts ...Option,
) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		transport: newCollyTransport(),
		breakers:  breakers,
		proxies:   proxies,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch executes the resilient fetch algorithm: breaker gate, per-attempt
// proxy acquisition, randomized headers, failure classification, jittered
// exponential backoff, and durable error attribution.
func (c *Client) Fetch(ctx context.Context, req Request) (Payload, error) {
	domain, err := domainOf(req.URL)
	if err != nil {
		ferr := &Error{Kind: KindParse, Source: req.Source, Domain: req.URL, Err: err}
		c.attribute(ctx, ferr)
		return Payload{}, ferr
	}

	if c.breakers != nil && !c.breakers.CanRequest(domain) {
		ferr := &Error{Kind: KindCircuitOpen, Source: req.Source, Domain: domain, Err: breaker.ErrCircuitOpen}
		metrics.ObserveFetch(req.Source, string(KindCircuitOpen))
		c.attribute(ctx, ferr)
		return Payload{}, ferr
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = c.cfg.MaxRetries
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	var lastErr *Error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Payload{}, &Error{Kind: KindNetwork, Source: req.Source, Domain: domain, Err: err}
		}

		proxyURL := c.acquireProxy(req.UseProxy)
		headers := http.Header{}
		if req.BrowserHeaders {
			headers = randomBrowserHeaders()
		}

		payload, fetchErr := c.transport.get(ctx, req.URL, headers, proxyURL, timeout)
		ferr := c.classify(req.Source, domain, payload, fetchErr)
		if ferr == nil {
			c.reportSuccess(domain, proxyURL, payload.Duration)
			metrics.ObserveFetch(req.Source, "success")
			c.archivePayload(ctx, req.Source, payload)
			return payload, nil
		}

		lastErr = ferr
		c.reportProxyFailure(proxyURL)
		metrics.ObserveFetch(req.Source, string(ferr.Kind))
		c.logger.Debug("fetch attempt failed",
			zap.String("source", req.Source),
			zap.String("domain", domain),
			zap.Int("attempt", attempt),
			zap.String("kind", string(ferr.Kind)),
			zap.Error(ferr.Err),
		)

		if !ferr.Retryable() {
			break
		}
		if attempt < maxRetries {
			c.sleep(ctx, c.backoff(attempt))
		}
	}

	if c.breakers != nil {
		c.breakers.RecordFailure(domain)
	}
	c.attribute(ctx, lastErr)
	return Payload{}, lastErr
}

// classify maps a transport outcome to the error taxonomy. nil means the
// attempt succeeded.
func (c *Client) classify(source, domain string, payload Payload, err error) *Error {
	status := payload.StatusCode
	switch {
	case err == nil && status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Source: source, Domain: domain, StatusCode: status, Err: wrapStatus(err, status)}
	case status >= 400 && status < 500:
		return &Error{Kind: KindHTTPClient, Source: source, Domain: domain, StatusCode: status, Err: wrapStatus(err, status)}
	case status >= 500:
		return &Error{Kind: KindHTTPServer, Source: source, Domain: domain, StatusCode: status, Err: wrapStatus(err, status)}
	case err != nil:
		return &Error{Kind: KindNetwork, Source: source, Domain: domain, Err: err}
	default:
		return &Error{Kind: KindHTTPServer, Source: source, Domain: domain, StatusCode: status,
			Err: fmt.Errorf("unexpected status %d", status)}
	}
}

func wrapStatus(err error, status int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("http status %d", status)
}

func (c *Client) acquireProxy(useProxy bool) string {
	if !useProxy || c.proxies == nil {
		return ""
	}
	u, ok := c.proxies.Acquire()
	if !ok {
		return ""
	}
	return u
}

func (c *Client) reportSuccess(domain, proxyURL string, latency time.Duration) {
	if c.breakers != nil {
		c.breakers.RecordSuccess(domain)
	}
	if proxyURL != "" && c.proxies != nil {
		c.proxies.ReportSuccess(proxyURL, latency)
	}
}

func (c *Client) reportProxyFailure(proxyURL string) {
	if proxyURL != "" && c.proxies != nil {
		c.proxies.ReportFailure(proxyURL)
	}
}

// attribute appends the failure to the crawl log. Best effort only.
func (c *Client) attribute(ctx context.Context, ferr *Error) {
	if c.crawlLog == nil || ferr == nil {
		return
	}
	now := time.Now().UTC()
	if c.clock != nil {
		now = c.clock.Now()
	}
	entry := ingest.CrawlLogEntry{
		Source:     ferr.Source,
		Domain:     ferr.Domain,
		Kind:       string(ferr.Kind),
		Message:    ferr.Error(),
		OccurredAt: now,
	}
	if err := c.crawlLog.AppendCrawlLog(ctx, entry); err != nil {
		c.logger.Warn("crawl log append failed", zap.Error(err))
	}
}

func (c *Client) archivePayload(ctx context.Context, source string, payload Payload) {
	if c.archive == nil || len(payload.Body) == 0 {
		return
	}
	contentType := payload.Headers.Get("Content-Type")
	if _, err := c.archive.Put(ctx, source, contentType, payload.Body); err != nil {
		c.logger.Warn("archive payload failed", zap.String("source", source), zap.Error(err))
	}
}

// backoff returns retryDelay × 2^(attempt-1) capped at MaxDelay, plus
// jitter up to half the delay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.cfg.RetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.cfg.MaxDelay) {
		delay = float64(c.cfg.MaxDelay)
	}
	return time.Duration(delay) + randomJitter(time.Duration(delay)/2)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func domainOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("url has no host")
	}
	return host, nil
}
