package util

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type LeveledSlog struct {
	inner *slog.Logger
}

func NewLeveledSlog(logger *slog.Logger) LeveledSlog {
	if logger == nil {
		logger = slog.Default()
	}
	return LeveledSlog{inner: logger.With("component", "http-client")}
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l LeveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

type HTTPClientOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

func DefaultHTTPClientOptions() HTTPClientOptions {
	return HTTPClientOptions{
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 10 * time.Second,
		Timeout:      20 * time.Second,
	}
}

// Generates an HTTP client with decent general-purpose defaults around
// timeouts and retries. The returned client has the stdlib http.Client
// interface, but has Hashicorp retryablehttp logic internally.
//
// This client will retry on connection errors, 5xx status (except 501), and
// 429 Backoff requests (respecting rate-limit reset hints, see
// RateLimitBackoff). It will log intermediate failures with WARN level. This
// does not start from http.DefaultClient.
func RobustHTTPClient() *http.Client {
	return NewHTTPClient(DefaultHTTPClientOptions())
}

func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Backoff = RateLimitBackoff
	retryClient.Logger = retryablehttp.LeveledLogger(NewLeveledSlog(opts.Logger))
	// trace each attempt, not just the overall request
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(retryClient.HTTPClient.Transport)
	client := retryClient.StandardClient()
	client.Timeout = opts.Timeout
	return client
}

// Backoff for retryablehttp. On 429 and 503 responses, a server-provided wait
// ('Retry-After', or the 'x-ratelimit-reset-requests' / 'x-ratelimit-reset-tokens'
// headers sent by the OpenAI API) is used when present, capped at max.
// Otherwise the wait is exponential in the attempt number with up to 25%
// jitter, bounded by [min, max].
func RateLimitBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if wait, ok := rateLimitHint(resp.Header); ok {
			if wait > max {
				return max
			}
			return wait
		}
	}

	mult := math.Pow(2, float64(attemptNum))
	wait := time.Duration(float64(min) * mult)
	if wait <= 0 || wait > max {
		wait = max
	}
	if jitter := int64(wait / 4); jitter > 0 {
		wait += time.Duration(rand.Int64N(jitter))
	}
	if wait > max {
		wait = max
	}
	return wait
}

// Parses the longest wait indicated by rate-limit headers.
func rateLimitHint(h http.Header) (time.Duration, bool) {
	var wait time.Duration
	found := false
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
			found = true
		} else if t, err := http.ParseTime(v); err == nil {
			wait = max(time.Until(t), 0)
			found = true
		}
	}
	for _, name := range []string{"x-ratelimit-reset-requests", "x-ratelimit-reset-tokens"} {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			continue
		}
		if d > wait {
			wait = d
		}
		found = true
	}
	return wait, found
}
