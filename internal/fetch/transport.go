package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Payload is the raw result of a single HTTP GET.
type Payload struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// transport issues a single HTTP GET. It is an internal seam so the client
// can be tested without a network.
type transport interface {
	get(ctx context.Context, url string, headers http.Header, proxyURL string, timeout time.Duration) (Payload, error)
}

// collyTransport implements transport with a cloned colly collector per
// request.
type collyTransport struct {
	base *colly.Collector
}

func newCollyTransport() *collyTransport {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &collyTransport{base: c}
}

func (t *collyTransport) get(
	ctx context.Context,
	url string,
	headers http.Header,
	proxyURL string,
	timeout time.Duration,
) (Payload, error) {
	collector := t.base.Clone()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	if proxyURL != "" {
		if err := collector.SetProxy(proxyURL); err != nil {
			return Payload{}, fmt.Errorf("set proxy: %w", err)
		}
	}

	var (
		result   Payload
		fetchErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Payload{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.URL = url
			result.StatusCode = r.StatusCode
			result.Duration = time.Since(start)
			if r.Body != nil {
				result.Body = append([]byte(nil), r.Body...)
			}
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Payload{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return result, fetchErr
		}
		if err != nil {
			return result, err
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
