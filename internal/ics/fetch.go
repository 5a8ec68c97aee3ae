package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "gridgen/internal/log"
)

// Feed is a holiday calendar subscription.
type Feed struct {
	ID  string
	URL string
}

// FetchResult is the body of one feed, fresh or cached.
type FetchResult struct {
	Feed      Feed
	Body      []byte
	FromCache bool
}

// cacheMeta is persisted next to the cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feeds with conditional requests and a disk cache, one
// directory per URL hash.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher returns a Fetcher caching under cacheDir. A nil client gets a
// 15 second timeout.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = filepath.Join(".gridgen", "feeds")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// FetchAll fetches every feed. Failures are logged and joined into the
// returned error; successful results are still returned.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []Feed) ([]FetchResult, error) {
	results := make([]FetchResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		res, err := f.Fetch(ctx, feed)
		if err != nil {
			appLog.Error("feed fetch failed", err, "id", feed.ID, "url", redactURL(feed.URL))
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Fetch downloads one feed. A 304 or any failure with a cached body
// available returns the cached body.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) (FetchResult, error) {
	if feed.URL == "" {
		return FetchResult{}, errors.New("feed URL is empty")
	}

	dir := f.cacheDirFor(feed.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))
	fromCache := func(reason string, cause error) (FetchResult, error) {
		if len(cached) == 0 {
			if cause == nil {
				cause = errors.New(reason)
			}
			return FetchResult{}, cause
		}
		appLog.Warn("feed served from cache", "id", feed.ID, "reason", reason)
		return FetchResult{Feed: feed, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache("network error", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fromCache("read error", err)
		}
		next := cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("feed cache save failed", err, "id", feed.ID)
		}
		appLog.Debug("feed fetched", "id", feed.ID, "bytes", len(body))
		return FetchResult{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		return fromCache("not modified", errors.New("304 Not Modified without a cached body"))

	default:
		return fromCache(resp.Status, errors.New(resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
