package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/vertextoedge/resource-fetcher/internal/port"
	"go.uber.org/zap"
)

// ErrTimedOut marks a download that exhausted its retry budget on
// attempt deadlines. Use errors.Is to detect it.
var ErrTimedOut = errors.New("download timed out")

// Request describes one file to download. Destination is relative to the
// filesystem manager's root and is overwritten fresh on every attempt.
type Request struct {
	URL         string
	Destination string
	Description string
}

// Options are read once per Download call
type Options struct {
	// MaxRetries is the total attempt budget, at least 1
	MaxRetries int

	// AttemptTimeout bounds the wall clock of a single attempt
	AttemptTimeout time.Duration
}

// Fetcher downloads remote resources to local storage with bounded
// retries and per-attempt timeouts, reusing the shared connection pool.
type Fetcher struct {
	pool   *Pool
	fs     port.FileSystem
	logger *zap.Logger
	opts   Options
}

// New creates a Fetcher. The pool is shared, process-scoped state;
// everything else per-call, so concurrent Download calls are safe.
func New(opts Options, pool *Pool, fsys port.FileSystem, logger *zap.Logger) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Minute
	}
	return &Fetcher{
		pool:   pool,
		fs:     fsys,
		logger: logger,
		opts:   opts,
	}
}

// Download fetches req.URL into req.Destination. Attempts run strictly
// sequentially; each failed attempt consumes one unit of the retry budget
// and the next attempt truncates whatever the previous one wrote. Only
// the final attempt's failure is surfaced.
func (f *Fetcher) Download(ctx context.Context, req Request) error {
	dest, err := f.fs.SafePath(req.Destination)
	if err != nil {
		return fmt.Errorf("download failed: %s: %w", req.Description, err)
	}
	if err := f.fs.EnsureDir(dest); err != nil {
		return fmt.Errorf("download failed: %s: %w", req.Description, err)
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("download failed: %s: %w", req.Description, err)
	}
	client := f.pool.ClientFor(u)

	f.logger.Debug("downloading resource",
		zap.String("url", req.URL),
		zap.String("destination", dest),
		zap.Int("max_retries", f.opts.MaxRetries))

	var lastErr error
	var timedOut bool
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		timedOut, lastErr = f.transfer(ctx, client, req.URL, dest)
		if lastErr == nil {
			f.logger.Debug("download complete",
				zap.String("url", req.URL),
				zap.Int("attempts", attempt+1))
			return nil
		}
		// Failures before the final attempt are swallowed, even ones
		// that will deterministically recur (bad permissions burn the
		// whole budget before failing).
	}

	if timedOut {
		return fmt.Errorf("%w after %s for %d attempts",
			ErrTimedOut, f.opts.AttemptTimeout, f.opts.MaxRetries)
	}
	return fmt.Errorf("download failed: %s: %w", req.Description, lastErr)
}

// transfer performs one attempt: open the destination fresh, issue the
// GET bound to the watchdog context, and stream the body to disk. The
// reported timeout flag is authoritative over the transport's error text.
func (f *Fetcher) transfer(ctx context.Context, client *http.Client, rawURL, dest string) (timedOut bool, err error) {
	// The destination is opened, truncating any prior partial write,
	// before the network is touched.
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", dest, err)
	}
	// Idempotent release: the success path closes explicitly to confirm
	// the flush; closing again here yields ErrClosed, which is fine.
	defer out.Close()

	wd := newWatchdog(ctx, f.opts.AttemptTimeout)
	defer wd.Stop()

	req, err := http.NewRequestWithContext(wd.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return wd.Expired(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wd.Expired(), fmt.Errorf("http error %d: %s", resp.StatusCode, resp.Status)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return wd.Expired(), err
	}

	if err := out.Close(); err != nil {
		return false, fmt.Errorf("failed to flush %s: %w", dest, err)
	}
	return false, nil
}
