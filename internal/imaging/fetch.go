package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	// Payloads smaller than this cannot be a real image.
	minPayloadBytes = 100

	// A browser-like identity keeps the CDN's bot mitigation away.
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader = "image/avif,image/webp,image/png,image/jpeg,image/*;q=0.8,*/*;q=0.5"

	// Fallback delay for a 429 without a usable Retry-After header.
	defaultRetryAfter = 2 * time.Second
)

// defaultFlakyHosts are the attachment CDNs that intermittently 404 on
// valid, freshly created URLs and throttle aggressively. Requests to them
// go through a stricter gate and get a tolerant 404 policy.
var defaultFlakyHosts = []string{
	"cdn.discordapp.com",
	"media.discordapp.net",
}

// Options tunes retry and rate-limit behavior.
type Options struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	CDNConcurrency int
	CDNMinInterval time.Duration
	// FlakyHosts overrides the flaky-CDN host list; mainly for tests.
	FlakyHosts []string
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 4
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = 500 * time.Millisecond
	}
	if o.CDNConcurrency == 0 {
		o.CDNConcurrency = 3
	}
	if o.CDNMinInterval == 0 {
		o.CDNMinInterval = 200 * time.Millisecond
	}
	if o.FlakyHosts == nil {
		o.FlakyHosts = defaultFlakyHosts
	}
	return o
}

// Fetcher retrieves images and turns them into inference-ready tensors.
// The flaky-CDN gate (concurrency bound plus minimum request spacing) is
// shared across all callers.
type Fetcher struct {
	client     *http.Client
	opts       Options
	flakyHosts map[string]bool

	gate chan struct{} // bounds in-flight flaky-CDN requests

	mu       sync.Mutex
	nextSlot time.Time // earliest start time for the next flaky-CDN request

	// sleep is swapped out in tests to record backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher on top of the injected HTTP client.
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	opts = opts.withDefaults()

	flaky := make(map[string]bool, len(opts.FlakyHosts))
	for _, host := range opts.FlakyHosts {
		flaky[host] = true
	}

	return &Fetcher{
		client:     client,
		opts:       opts,
		flakyHosts: flaky,
		gate:       make(chan struct{}, opts.CDNConcurrency),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchTensor downloads the image at rawURL and normalizes it to a
// width x height tensor for the calling model stage.
func (f *Fetcher) FetchTensor(ctx context.Context, rawURL string, width, height int) (*Tensor, error) {
	data, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	tensor, err := toTensor(data, width, height)
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, URL: rawURL, Err: err}
	}
	return tensor, nil
}

// fetch downloads rawURL with the retry policy. The returned error is
// always a *FetchError unless the caller's context was canceled.
func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	flaky := f.isFlaky(rawURL)

	var lastErr *FetchError
	for attempt := 0; attempt < f.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.retryDelay(lastErr, attempt)
			slog.Debug("Retrying image fetch",
				"url", rawURL, "attempt", attempt+1, "delay", delay, "cause", lastErr.Kind.String())
			if err := f.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		data, ferr := f.attempt(ctx, rawURL, attempt, flaky)
		if ferr == nil {
			return data, nil
		}

		lastErr = ferr
		if !retryable(ferr.Kind, flaky) {
			return nil, ferr
		}
	}

	return nil, lastErr
}

// attempt performs one GET with this attempt's timeout ceiling.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, attempt int, flaky bool) ([]byte, *FetchError) {
	if flaky {
		if err := f.enterGate(ctx); err != nil {
			return nil, &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		defer func() { <-f.gate }()
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeoutFor(attempt, flaky))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindUnknown, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Kind: KindNotFound, URL: rawURL}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{
			Kind:       KindRateLimited,
			URL:        rawURL,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, &FetchError{Kind: KindServerError, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	default:
		return nil, &FetchError{Kind: KindUnknown, URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	if len(data) < minPayloadBytes {
		return nil, &FetchError{Kind: KindCorrupt, URL: rawURL, Err: fmt.Errorf("payload is %d bytes", len(data))}
	}

	return data, nil
}

// enterGate acquires a flaky-CDN slot and enforces the minimum spacing
// between request starts.
func (f *Fetcher) enterGate(ctx context.Context) error {
	select {
	case f.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	now := time.Now()
	wait := f.nextSlot.Sub(now)
	if wait < 0 {
		wait = 0
	}
	f.nextSlot = now.Add(wait + f.opts.CDNMinInterval)
	f.mu.Unlock()

	if wait > 0 {
		if err := f.sleep(ctx, wait); err != nil {
			<-f.gate
			return err
		}
	}
	return nil
}

// retryDelay picks the pause before the given (1-based) retry attempt.
func (f *Fetcher) retryDelay(lastErr *FetchError, attempt int) time.Duration {
	if lastErr.Kind == KindRateLimited {
		if lastErr.retryAfter > 0 {
			return lastErr.retryAfter
		}
		return defaultRetryAfter
	}
	return f.opts.BackoffBase << (attempt - 1)
}

// timeoutFor returns the total timeout ceiling for an attempt. Ceilings
// escalate with every retry; the flaky CDN starts higher.
func (f *Fetcher) timeoutFor(attempt int, flaky bool) time.Duration {
	base := 5 * time.Second
	if flaky {
		base = 10 * time.Second
	}
	return base * time.Duration(attempt+1)
}

func (f *Fetcher) isFlaky(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return f.flakyHosts[u.Hostname()]
}

// retryable reports whether a failure of the given kind may be retried.
// 404s retry only on the flaky CDN, where fresh URLs can be transiently
// unavailable; anywhere else a 404 is final.
func retryable(kind ErrorKind, flaky bool) bool {
	switch kind {
	case KindNotFound:
		return flaky
	case KindRateLimited, KindServerError, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
