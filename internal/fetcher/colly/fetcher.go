// Package collyfetcher implements audit.Fetcher with a gocolly collector.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/seoscope/siteaudit/internal/audit"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior for every fetch.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBody   int
}

// Fetcher performs one GET per call through a cloned collector. Redirects
// are followed transparently; the response reports the final URL.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher. Robots admission is the scheduler's job, so the
// collector never consults robots.txt itself.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Non-2xx responses still carry signal (status, body) for the analyzer.
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBody > 0 {
		c.MaxBodySize = cfg.MaxBody
	}
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET. The configured timeout is a hard bound
// on the attempt; retry policy belongs to the caller.
func (f *Fetcher) Fetch(ctx context.Context, url string) (audit.FetchResponse, error) {
	var (
		result   audit.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = audit.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses here; keep the response so the
		// analyzer can classify the HTTP error precisely.
		if r != nil && r.StatusCode != 0 {
			result = audit.FetchResponse{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Headers:    headersOrEmpty(r),
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return audit.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return audit.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if err != nil && result.StatusCode == 0 {
			return audit.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		return result, nil
	}
}

func headersOrEmpty(r *colly.Response) http.Header {
	if r.Headers == nil {
		return http.Header{}
	}
	return r.Headers.Clone()
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
