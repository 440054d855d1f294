package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/vagangabrain/Optimised-jess/internal/xfs"
)

// Error definitions for artifact downloads. Both abort model
// initialization entirely; the pipeline must not serve predictions from a
// partially fetched set.
var (
	ErrAuth     = errors.New("artifact download not authorized")
	ErrNotFound = errors.New("artifact not found")
)

const defaultTimeout = 60 * time.Second

// File pairs a remote artifact URL with its local cache path.
type File struct {
	URL  string
	Path string
}

// Fetcher downloads model artifacts into the local cache directory.
type Fetcher struct {
	client  *http.Client
	token   string
	timeout time.Duration
}

// NewFetcher creates a Fetcher. The token is optional and only needed for
// private repositories.
func NewFetcher(client *http.Client, token string) *Fetcher {
	return &Fetcher{
		client:  client,
		token:   token,
		timeout: defaultTimeout,
	}
}

// EnsureCached downloads every file that is not already on disk. Downloads
// run concurrently; the first failure fails the whole call.
func (f *Fetcher) EnsureCached(ctx context.Context, files []File) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, file := range files {
		if _, err := os.Stat(file.Path); err == nil {
			slog.Debug("Artifact already cached, skipping", "path", file.Path)
			continue
		}

		wg.Add(1)
		go func(file File) {
			defer wg.Done()

			if err := f.download(ctx, file); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(file)
	}

	wg.Wait()
	return firstErr
}

// download fetches one file and writes it atomically.
func (f *Fetcher) download(ctx context.Context, file File) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", file.URL, err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", file.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: check the artifact token for %s", ErrAuth, file.URL)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, file.URL)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("HTTP %d downloading %s", resp.StatusCode, file.URL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.URL, err)
	}

	if err := xfs.WriteFileAtomic(file.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file.Path, err)
	}

	slog.Info("Artifact downloaded", "path", file.Path, "bytes", len(data))
	return nil
}
