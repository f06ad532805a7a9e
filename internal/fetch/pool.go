package fetch

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

// PoolOptions contains the shared connection pool settings
type PoolOptions struct {
	// IdleConnTimeout is how long a keep-alive socket may sit unused.
	// It should far exceed any expected single transfer duration so a
	// long download is never starved by socket reaping.
	IdleConnTimeout     time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	InsecureSkipVerify  bool
}

// Pool holds long-lived keep-alive connections for plain and secure HTTP,
// shared across all download calls in the process. It is created once at
// startup and is read-only afterwards; concurrent use is safe.
type Pool struct {
	plain  *http.Client
	secure *http.Client
}

// NewPool creates the process-scoped connection pool
func NewPool(opts PoolOptions) *Pool {
	if opts.IdleConnTimeout <= 0 {
		opts.IdleConnTimeout = 24 * time.Hour
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 100
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 10
	}

	plainTransport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		// Disable compression for binary files (saves CPU)
		DisableCompression: true,
	}

	secureTransport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		DisableCompression:  true,
	}

	return &Pool{
		// No Client.Timeout: attempt deadlines come from the watchdog
		plain:  &http.Client{Transport: plainTransport},
		secure: &http.Client{Transport: secureTransport},
	}
}

// ClientFor returns the pooled client for the URL's scheme
func (p *Pool) ClientFor(u *url.URL) *http.Client {
	if u.Scheme == "https" {
		return p.secure
	}
	return p.plain
}

// Shutdown closes idle connections on both transports. It is only needed
// for clean process exit in long-running hosts; sockets are otherwise
// process-scoped and never torn down mid-run.
func (p *Pool) Shutdown() {
	p.plain.CloseIdleConnections()
	p.secure.CloseIdleConnections()
}
