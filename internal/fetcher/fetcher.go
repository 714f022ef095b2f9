package fetcher

import (
	"context"
	"errors"
	"time"
)

// Fetcher exports a project and returns the path of the downloaded archive.
type Fetcher interface {
	Fetch(ctx context.Context, projectURL string) (string, error)
}

// ErrTitleUnknown is returned by ArchiveName before a title has been scraped.
var ErrTitleUnknown = errors.New("project title not set, fetch the project first")

// ErrArchiveMissing means the export finished but no archive file was found.
var ErrArchiveMissing = errors.New("archive not found in download directory")

// Options configures the Chrome fetcher.
type Options struct {
	DownloadDir    string
	ProfileDir     string
	Headless       bool
	NoSandbox      bool
	ElementTimeout time.Duration
	Wait           WaitOptions
}

// Locations on the read-only project page.
const (
	titleXPath    = "/html/body/main/div[2]/header/div[2]/span"
	menuXPath     = "/html/body/main/div[2]/header/div[1]/div[1]/button"
	downloadXPath = "/html/body/div[2]/div/ul[1]/li[1]/a"
)

func archiveName(title string) (string, error) {
	if title == "" {
		return "", ErrTitleUnknown
	}
	return title + ".zip", nil
}
