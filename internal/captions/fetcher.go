// Package captions downloads caption documents from http(s) or s3 locations.
package captions

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/podseek/internal/storage"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxDocumentSize = storage.MaxObjectSize
)

// ObjectReader reads objects from a bucket
type ObjectReader interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetcher implements service.CaptionFetcherInterface.
// Every fetch is bounded by timeout on top of the caller's context.
type Fetcher struct {
	http    *http.Client
	objects ObjectReader
	timeout time.Duration
}

// NewFetcher creates a Fetcher. objects may be nil, in which case s3 locations are rejected.
func NewFetcher(httpClient *http.Client, objects ObjectReader, timeout time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{http: httpClient, objects: objects, timeout: timeout}
}

// Fetch returns the caption document at location
func (f *Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchHTTP(ctx, location)
	case strings.HasPrefix(location, "s3://"):
		return f.fetchObject(ctx, location)
	default:
		return "", fmt.Errorf("unsupported caption location: %q", location)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create caption request: %w", err)
	}
	req.Header.Set("Accept", "text/vtt, text/plain;q=0.9, */*;q=0.1")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption fetch returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}
	return string(body), nil
}

func (f *Fetcher) fetchObject(ctx context.Context, location string) (string, error) {
	if f.objects == nil {
		return "", fmt.Errorf("object storage is not configured for %q", location)
	}
	bucket, key, err := storage.ParseLocation(location)
	if err != nil {
		return "", err
	}
	body, err := f.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
