// Package fetch retrieves downstream API documents over HTTP.
package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"github.com/wudi/docgateway/internal/errors"
	"github.com/wudi/docgateway/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/wudi/docgateway/internal/fetch"

// DefaultMaxBodySize caps downstream documents.
const DefaultMaxBodySize = 16 << 20

var errEmptyURL = stderrors.New("empty document url")

// Header is a static header attached to every fetch.
type Header struct {
	Name  string
	Value string
}

// BreakerOptions configures the per-host circuit breaker.
type BreakerOptions struct {
	Enabled          bool
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// Metrics receives fetch observations.
type Metrics interface {
	ObserveFetch(host string, code int, d time.Duration)
	RecordRetry(host string)
	SetBreakerState(host string, state int)
}

// Options configures a Client.
type Options struct {
	Timeout         time.Duration
	Headers         []Header
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxBodySize     int64
	// Coalesce lets concurrent fetches of the same URL share one request.
	// The shared request outlives a caller that gives up; it is bounded by
	// Timeout instead.
	Coalesce bool
	Breaker  BreakerOptions

	HTTPClient *http.Client
	Metrics    Metrics
}

// Client fetches documents with retries and circuit breaking.
type Client struct {
	http    *http.Client
	opts    Options
	metrics Metrics
	tracer  trace.Tracer
	group   singleflight.Group

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 2 * time.Second
	}
	if opts.Breaker.FailureThreshold == 0 {
		opts.Breaker.FailureThreshold = 5
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	var m Metrics = noopMetrics{}
	if opts.Metrics != nil {
		m = opts.Metrics
	}

	return &Client{
		http:     hc,
		opts:     opts,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Fetch GETs rawURL and returns the body. Failures are *errors.FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, &errors.FetchError{URL: rawURL, Err: errEmptyURL}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &errors.FetchError{URL: rawURL, Err: err}
	}

	if !c.opts.Coalesce {
		return c.fetch(ctx, u)
	}

	ch := c.group.DoChan(rawURL, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), u)
	})
	select {
	case <-ctx.Done():
		return nil, &errors.FetchError{URL: rawURL, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return bytes.Clone(res.Val.([]byte)), nil
	}
}

func (c *Client) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	rawURL := u.String()
	ctx, span := c.tracer.Start(ctx, "docgateway.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("url.full", rawURL),
			attribute.String("server.address", u.Host),
		),
	)
	defer span.End()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxInterval = c.opts.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries and ctx

	var body []byte
	op := func() error {
		b, err := c.guarded(ctx, u)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.RecordRetry(u.Host)
		logging.FromContext(ctx).Debug("retrying document fetch",
			zap.String("url", rawURL),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(c.opts.MaxRetries, 0))), ctx),
		notify,
	)
	if err != nil {
		var fe *errors.FetchError
		if !stderrors.As(err, &fe) {
			err = &errors.FetchError{URL: rawURL, Err: err}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

// guarded runs one attempt through the host's circuit breaker.
func (c *Client) guarded(ctx context.Context, u *url.URL) ([]byte, error) {
	if !c.opts.Breaker.Enabled {
		return c.attempt(ctx, u)
	}

	body, err := c.breaker(u.Host).Execute(func() ([]byte, error) {
		return c.attempt(ctx, u)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, backoff.Permanent(&errors.FetchError{URL: u.String(), Err: err})
	}
	return body, err
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	threshold := c.opts.Breaker.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: c.opts.Breaker.MaxRequests,
		Interval:    c.opts.Breaker.Interval,
		Timeout:     c.opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.SetBreakerState(name, int(to))
			logging.Warn("downstream circuit breaker changed state",
				zap.String("host", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	c.breakers[host] = cb
	return cb
}

// countsAsSuccess keeps client-side problems (4xx, cancellation) from
// tripping the breaker of a healthy host.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	var fe *errors.FetchError
	if stderrors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 {
		return true
	}
	return false
}

func (c *Client) attempt(ctx context.Context, u *url.URL) ([]byte, error) {
	rawURL := u.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(&errors.FetchError{URL: rawURL, Err: err})
	}
	for _, h := range c.opts.Headers {
		req.Header.Set(h.Name, h.Value)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveFetch(u.Host, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(&errors.FetchError{URL: rawURL, Err: ctxErr})
		}
		return nil, &errors.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.ObserveFetch(u.Host, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fe := &errors.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
		if isPermanentStatus(resp.StatusCode) {
			return nil, backoff.Permanent(fe)
		}
		return nil, fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodySize+1))
	if err != nil {
		return nil, &errors.FetchError{URL: rawURL, Err: err}
	}
	if int64(len(body)) > c.opts.MaxBodySize {
		return nil, backoff.Permanent(&errors.FetchError{
			URL: rawURL,
			Err: fmt.Errorf("document exceeds %d bytes", c.opts.MaxBodySize),
		})
	}
	return body, nil
}

func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout &&
		code != http.StatusTooManyRequests
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, int, time.Duration) {}
func (noopMetrics) RecordRetry(string)                      {}
func (noopMetrics) SetBreakerState(string, int)             {}
