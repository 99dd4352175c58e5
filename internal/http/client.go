// Package http downloads catalog archives from the URLs submitted with a
// publish request.
package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kosarica/catalog-service/internal/http/retry"
	"golang.org/x/time/rate"
)

const userAgent = "Catalog-Service/1.0"

// ErrRedirect is returned when the archive URL answers with a redirect.
// Redirects are not followed.
var ErrRedirect = errors.New("empty response")

// FetchError is the terminal error of a download. Code is what goes after
// "fetch:" in a task failure.
type FetchError struct {
	URL  string
	Code string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Code)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config controls the archive client.
type Config struct {
	// Timeout bounds the whole download including retries.
	Timeout time.Duration
	// MaxArchiveSize caps the body size in bytes (0 = unlimited).
	MaxArchiveSize int64
	// RequestsPerSecond throttles outbound downloads (0 = unlimited).
	RequestsPerSecond float64
	Retry             retry.Policy
}

// DefaultConfig returns sane defaults for archive downloads.
func DefaultConfig() Config {
	return Config{
		Timeout:           2 * time.Minute,
		MaxArchiveSize:    256 * 1024 * 1024,
		RequestsPerSecond: 10,
		Retry:             retry.DefaultPolicy(),
	}
}

// Client downloads archives with rate limiting and retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
}

// NewClient creates an archive client.
func NewClient(config Config) *Client {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &Client{
		httpClient: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return ErrRedirect
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		config:  config,
	}
}

// Fetch downloads the archive at url and returns its bytes.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var body []byte
	err := c.config.Retry.Do(ctx, func(ctx context.Context, attempt int) (int, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		data, status, err := c.get(ctx, url)
		if err != nil {
			return status, err
		}
		body = data
		return status, nil
	})
	if err != nil {
		return nil, &FetchError{URL: url, Code: failureCode(err), Err: err}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, &retry.StatusError{Status: resp.StatusCode}
	}

	var reader io.Reader = resp.Body
	if c.config.MaxArchiveSize > 0 {
		reader = io.LimitReader(resp.Body, c.config.MaxArchiveSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if c.config.MaxArchiveSize > 0 && int64(len(data)) > c.config.MaxArchiveSize {
		return nil, resp.StatusCode, &retry.StatusError{Status: http.StatusRequestEntityTooLarge}
	}
	if len(data) == 0 {
		return nil, resp.StatusCode, ErrRedirect
	}
	return data, resp.StatusCode, nil
}

// failureCode maps a download error to the code stored in the task failure.
func failureCode(err error) string {
	var retryErr *retry.Error
	if errors.As(err, &retryErr) && retryErr.Timeout {
		return "TIMEOUT"
	}
	if errors.Is(err, ErrRedirect) {
		return ErrRedirect.Error()
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		return strconv.Itoa(statusErr.Status)
	}
	if retry.IsTimeout(err) {
		return "TIMEOUT"
	}
	return "unreachable"
}

// ComputeSha256 computes the SHA256 hash of the given data
func ComputeSha256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
