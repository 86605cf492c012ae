// Package hfhub downloads files of a Hugging Face Hub repository revision.
package hfhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/logging"
)

const userAgent = "garr-agent/1.0"

// Downloader fetches the configured files into LocalDir.
type Downloader struct {
	config *Config
	fs     afero.Fs
	client *http.Client
	logger logging.Interface
}

func NewDownloader(config *Config, fs afero.Fs, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Downloader{config: config, fs: fs, client: client, logger: config.AnotherLogger}
}

// FileURL is {endpoint}/{repo}/resolve/{revision}/{file}.
func (d *Downloader) FileURL(file string) string {
	segments := strings.Split(file, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		strings.TrimRight(d.config.Endpoint, "/"),
		d.config.RepoID,
		url.PathEscape(d.config.Revision),
		strings.Join(segments, "/"))
}

// DownloadAll fetches every configured file and returns their local paths.
func (d *Downloader) DownloadAll(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, len(d.config.Files))
	for _, file := range d.config.Files {
		path, err := d.Download(ctx, file)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Download fetches one file, retrying network errors, 5xx and 429 answers
// with exponential backoff. The destination only ever holds a complete file.
func (d *Downloader) Download(ctx context.Context, file string) (string, error) {
	dest := filepath.Join(d.config.LocalDir, filepath.FromSlash(file))
	fileURL := d.FileURL(file)
	logger := d.logger.WithField("url", fileURL)

	var lastErr error
	for attempt := 0; attempt <= d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := exponentialBackoff(attempt, d.config.RetryInterval)
			logger.WithField("attempt", attempt+1).
				WithField("error", lastErr.Error()).
				Warnf("Download failed, retrying in %s", delay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		n, err := d.fetch(ctx, fileURL, dest)
		if err == nil {
			logger.WithField("bytes", n).Infof("Downloaded %s", dest)
			return dest, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if ctx.Err() != nil || (errors.As(err, &httpErr) && !httpErr.Retryable()) {
			return "", err
		}
	}
	return "", fmt.Errorf("downloading %s failed after %d attempts: %w", file, d.config.MaxRetries+1, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, fileURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if d.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &HTTPError{StatusCode: resp.StatusCode, URL: fileURL, Body: strings.TrimSpace(string(body))}
	}

	return afero.AtomicWriteFrom(d.fs, dest, resp.Body, 0o644)
}

func exponentialBackoff(attempt int, baseDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}
	// Cap at 30 seconds to avoid extremely long delays
	return time.Duration(math.Min(float64(baseDelay)*math.Pow(2, float64(attempt-1)), float64(30*time.Second)))
}
