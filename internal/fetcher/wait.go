package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bartekus/leafsync/internal/syncerr"
)

// PartialSuffix marks a download Chrome has not finished writing.
const PartialSuffix = ".crdownload"

// ErrDownloadTimeout is wrapped by the Timeout error WaitForDownloads returns.
var ErrDownloadTimeout = errors.New("download did not complete in time")

// WaitOptions bounds WaitForDownloads.
type WaitOptions struct {
	Settle   time.Duration // initial delay before the first check
	Interval time.Duration
	Timeout  time.Duration // measured from the call, settle included
}

// DefaultWaitOptions matches the export behaviour of the project page.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Settle:   3 * time.Second,
		Interval: 500 * time.Millisecond,
		Timeout:  30 * time.Second,
	}
}

// WaitForDownloads blocks until dir holds no partial downloads, the
// timeout passes, or ctx is done.
func WaitForDownloads(ctx context.Context, dir string, opts WaitOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWaitOptions().Interval
	}
	start := time.Now()

	if opts.Settle > 0 {
		settle := time.NewTimer(opts.Settle)
		select {
		case <-ctx.Done():
			settle.Stop()
			return fmt.Errorf("waiting for downloads: %w", ctx.Err())
		case <-settle.C:
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		pending, err := PendingDownloads(dir)
		if err != nil {
			return syncerr.Tool("scan download directory", "", err)
		}
		if len(pending) == 0 {
			return nil
		}
		if time.Since(start) > opts.Timeout {
			return syncerr.Timeout("wait for downloads",
				fmt.Errorf("%w: %s still pending after %s", ErrDownloadTimeout, strings.Join(pending, ", "), opts.Timeout))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for downloads: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// PendingDownloads lists the partial download files in dir.
func PendingDownloads(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), PartialSuffix) {
			pending = append(pending, e.Name())
		}
	}
	return pending, nil
}

// ClearStale removes leftovers of a previous run from dir: the archive
// called name (when name is known) and any partial downloads. It returns
// the removed paths.
func ClearStale(dir, name string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}

	var targets []string
	if name != "" {
		targets = append(targets, filepath.Join(dir, name))
	}
	partials, err := filepath.Glob(filepath.Join(dir, "*"+PartialSuffix))
	if err != nil {
		return nil, err
	}
	targets = append(targets, partials...)

	var removed []string
	for _, p := range targets {
		err := os.Remove(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("removing %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}
