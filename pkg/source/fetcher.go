// Package source retrieves the exam CSV document from its remote endpoint.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultURL is the published exam dataset.
	DefaultURL = "https://pastebin.com/raw/e4WamPB4"

	defaultUserAgent   = "examload-cli"
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10 MB
)

var (
	// ErrUnexpectedStatus is matched by every StatusError.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrBodyTooLarge is returned when the document exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError is returned when the server answers with anything but 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: server returned status: %s", e.URL, e.Status)
}

// Is lets errors.Is(err, ErrUnexpectedStatus) match.
func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Response is the raw document returned by a successful fetch.
type Response struct {
	StatusCode int
	Body       string
}

// Fetcher issues a single GET per call. It never retries.
type Fetcher struct {
	Client      *http.Client
	UserAgent   string
	MaxBodySize int64
}

// NewFetcher returns a Fetcher whose client gives up after timeout.
// A non-positive timeout uses 30s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		Client:      &http.Client{Timeout: timeout},
		UserAgent:   defaultUserAgent,
		MaxBodySize: defaultMaxBodySize,
	}
}

// Fetch downloads url and returns its body when the server answers 200 OK.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Response, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Response{}, fmt.Errorf("source url must be non-empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.8")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Response{StatusCode: resp.StatusCode}, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	limit := f.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	if resp.ContentLength > limit {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("content-length %d exceeds limit of %d bytes: %w", resp.ContentLength, limit, ErrBodyTooLarge)
	}

	// Read one byte past the limit to tell an exact fit from truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("body exceeds limit of %d bytes: %w", limit, ErrBodyTooLarge)
	}

	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
