package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/resource-fetcher/internal/fs"
)

func newTestFetcher(t *testing.T, opts Options) (*Fetcher, string) {
	t.Helper()

	root := t.TempDir()
	manager, err := fs.NewManager(root)
	require.NoError(t, err)

	pool := NewPool(PoolOptions{})
	t.Cleanup(pool.Shutdown)

	return New(opts, pool, manager, zap.NewNop()), root
}

func TestDownload_Success(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "hello world")
	}))
	defer server.Close()

	for _, maxRetries := range []int{1, 3, 5} {
		fetcher, root := newTestFetcher(t, Options{
			MaxRetries:     maxRetries,
			AttemptTimeout: 5 * time.Second,
		})

		err := fetcher.Download(context.Background(), Request{
			URL:         server.URL,
			Destination: "data/blob.bin",
			Description: "test blob",
		})
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(root, "data", "blob.bin"))
		require.NoError(t, err)
		require.Equal(t, "hello world", string(got))
	}

	// One successful attempt per call, no extra requests
	require.Equal(t, int32(3), hits.Load())
}

func TestDownload_BoundedRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantOK     bool
		wantHits   int32
	}{
		{"succeeds first try", 0, 3, true, 1},
		{"succeeds after two failures", 2, 3, true, 3},
		{"fails when budget exhausted", 3, 3, false, 3},
		{"single attempt failure", 1, 1, false, 1},
		{"budget larger than needed", 1, 5, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(hits.Add(1)) <= tt.failures {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				fmt.Fprint(w, "payload")
			}))
			defer server.Close()

			fetcher, root := newTestFetcher(t, Options{
				MaxRetries:     tt.maxRetries,
				AttemptTimeout: 5 * time.Second,
			})

			err := fetcher.Download(context.Background(), Request{
				URL:         server.URL,
				Destination: "blob.bin",
				Description: "test blob",
			})

			if tt.wantOK {
				require.NoError(t, err)
				got, readErr := os.ReadFile(filepath.Join(root, "blob.bin"))
				require.NoError(t, readErr)
				require.Equal(t, "payload", string(got))
			} else {
				require.Error(t, err)
				require.Contains(t, err.Error(), "download failed: test blob")
				require.Contains(t, err.Error(), "http error 500")
			}
			require.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestDownload_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never respond within the attempt deadline
		<-r.Context().Done()
	}))
	defer server.Close()

	const (
		timeout    = 100 * time.Millisecond
		maxRetries = 3
	)

	fetcher, _ := newTestFetcher(t, Options{
		MaxRetries:     maxRetries,
		AttemptTimeout: timeout,
	})

	start := time.Now()
	err := fetcher.Download(context.Background(), Request{
		URL:         server.URL,
		Destination: "blob.bin",
		Description: "slow blob",
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimedOut)
	require.Contains(t, err.Error(), "100ms")
	require.Contains(t, err.Error(), "3 attempts")
	require.GreaterOrEqual(t, elapsed, maxRetries*timeout)
	require.Less(t, elapsed, 2*time.Second)
}

func TestDownload_TimeoutThenSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, "hello")
	}))
	defer server.Close()

	fetcher, root := newTestFetcher(t, Options{
		MaxRetries:     3,
		AttemptTimeout: 250 * time.Millisecond,
	})

	start := time.Now()
	err := fetcher.Download(context.Background(), Request{
		URL:         server.URL,
		Destination: "blob.bin",
		Description: "flaky blob",
	})

	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	require.Equal(t, int32(3), hits.Load())

	got, err := os.ReadFile(filepath.Join(root, "blob.bin"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestDownload_OverwritesPartialWrite(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Declare more bytes than are sent; the server closes the
			// connection short and the client sees an unexpected EOF.
			w.Header().Set("Content-Length", "100")
			fmt.Fprint(w, "PARTIAL-GARBAGE-PARTIAL-GARBAGE")
			return
		}
		fmt.Fprint(w, "fresh")
	}))
	defer server.Close()

	fetcher, root := newTestFetcher(t, Options{
		MaxRetries:     2,
		AttemptTimeout: 5 * time.Second,
	})

	err := fetcher.Download(context.Background(), Request{
		URL:         server.URL,
		Destination: "blob.bin",
		Description: "test blob",
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())

	// No residue from the first attempt's partial body
	got, err := os.ReadFile(filepath.Join(root, "blob.bin"))
	require.NoError(t, err)
	require.Equal(t, "fresh", string(got))
}

func TestDownload_ConcurrentCallsAreIndependent(t *testing.T) {
	bodyA := make([]byte, 64*1024)
	bodyB := make([]byte, 64*1024)
	for i := range bodyA {
		bodyA[i] = 'a'
		bodyB[i] = 'b'
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			w.Write(bodyA)
		case "/b":
			w.Write(bodyB)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher, root := newTestFetcher(t, Options{
		MaxRetries:     1,
		AttemptTimeout: 10 * time.Second,
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, path := range []string{"/a", "/b"} {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			errs[i] = fetcher.Download(context.Background(), Request{
				URL:         server.URL + path,
				Destination: "out" + path,
				Description: "concurrent blob",
			})
		}(i, path)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	gotA, err := os.ReadFile(filepath.Join(root, "out", "a"))
	require.NoError(t, err)
	require.Equal(t, bodyA, gotA)

	gotB, err := os.ReadFile(filepath.Join(root, "out", "b"))
	require.NoError(t, err)
	require.Equal(t, bodyB, gotB)
}

func TestDownload_RejectsEscapingDestination(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t, Options{
		MaxRetries:     3,
		AttemptTimeout: time.Second,
	})

	err := fetcher.Download(context.Background(), Request{
		URL:         server.URL,
		Destination: "../outside.bin",
		Description: "escape attempt",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "escape attempt")
	require.Contains(t, err.Error(), "escapes root")

	// The network is never contacted for an invalid destination
	require.Equal(t, int32(0), hits.Load())
}
