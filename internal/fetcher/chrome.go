package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/bartekus/leafsync/internal/syncerr"
)

// Chrome fetches project archives by driving a headless Chrome through
// the project page's download menu.
type Chrome struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	title     string
	suggested string
}

// NewChrome returns a Chrome fetcher.
func NewChrome(opts Options, log zerolog.Logger) *Chrome {
	return &Chrome{opts: opts, log: log}
}

// ArchiveName returns the archive file name derived from the scraped title.
func (c *Chrome) ArchiveName() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return archiveName(c.title)
}

// Fetch implements Fetcher.
func (c *Chrome) Fetch(ctx context.Context, projectURL string) (string, error) {
	c.reset()

	dir, err := filepath.Abs(c.opts.DownloadDir)
	if err != nil {
		return "", syncerr.Precondition("resolve download directory", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", syncerr.Tool("create download directory", "", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(c.opts.ProfileDir))
	}
	if !c.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if c.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) { c.log.Debug().Msgf(format, args...) }),
		chromedp.WithErrorf(func(format string, args ...any) { c.log.Warn().Msgf(format, args...) }),
	)
	defer func() {
		cancelBrowser()
		c.log.Info().Msg("browser closed after download attempt")
	}()

	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadWillBegin); ok {
			c.mu.Lock()
			c.suggested = e.SuggestedFilename
			c.mu.Unlock()
		}
	})

	c.log.Debug().Str("url", projectURL).Str("download_dir", dir).Msg("opening project page")
	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		chromedp.Navigate(projectURL),
	); err != nil {
		return "", syncerr.Tool("open project page", "", err)
	}

	c.scrapeTitle(browserCtx)

	name, _ := c.ArchiveName()
	removed, err := ClearStale(dir, name)
	if err != nil {
		return "", syncerr.Tool("clear download directory", "", err)
	}
	for _, p := range removed {
		c.log.Info().Str("path", p).Msg("removed stale download")
	}

	if err := c.clickWithin(browserCtx, "open project menu", menuXPath); err != nil {
		return "", err
	}
	if err := c.clickWithin(browserCtx, "click download entry", downloadXPath); err != nil {
		return "", err
	}

	if err := WaitForDownloads(browserCtx, dir, c.opts.Wait); err != nil {
		return "", err
	}
	c.log.Info().Msg("download completed")

	return c.resolveArchive(dir)
}

// reset forgets the title and download name of a previous run.
func (c *Chrome) reset() {
	c.mu.Lock()
	c.title = ""
	c.suggested = ""
	c.mu.Unlock()
}

func (c *Chrome) scrapeTitle(browserCtx context.Context) {
	ctx, cancel := context.WithTimeout(browserCtx, c.opts.ElementTimeout)
	defer cancel()

	var text string
	if err := chromedp.Run(ctx, chromedp.Text(titleXPath, &text, chromedp.BySearch)); err != nil || strings.TrimSpace(text) == "" {
		c.log.Warn().Err(err).Msg("could not find project title")
		return
	}

	c.mu.Lock()
	c.title = strings.TrimSpace(text)
	c.mu.Unlock()
	c.log.Debug().Str("title", c.title).Msg("project title")
}

func (c *Chrome) clickWithin(browserCtx context.Context, op, xpath string) error {
	ctx, cancel := context.WithTimeout(browserCtx, c.opts.ElementTimeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.Click(xpath, chromedp.BySearch))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return syncerr.Timeout(op, fmt.Errorf("element %s did not appear within %s", xpath, c.opts.ElementTimeout))
	}
	return syncerr.Tool(op, "", err)
}

// resolveArchive prefers the title-derived name and falls back to the
// file name Chrome announced for the download.
func (c *Chrome) resolveArchive(dir string) (string, error) {
	name, err := c.ArchiveName()
	if err != nil {
		c.mu.Lock()
		name = c.suggested
		c.mu.Unlock()
		if name == "" {
			return "", syncerr.Tool("resolve archive name", "", err)
		}
		c.log.Warn().Str("archive", name).Msg("using browser-suggested archive name")
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", syncerr.Tool("locate archive", path, fmt.Errorf("%w: %v", ErrArchiveMissing, err))
	}
	return path, nil
}
