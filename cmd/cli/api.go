package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kosarica/catalog-service/internal/handlers"
	"github.com/kosarica/catalog-service/internal/middleware"
)

// apiClient calls a running catalog server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is a non-2xx answer of the server.
type apiError struct {
	Status int
	Body   handlers.ErrorResponse
	Raw    string
}

func (e *apiError) Error() string {
	if e.Body.Error.Code != "" {
		return fmt.Sprintf("server answered %d %s %v", e.Status, e.Body.Error.Code, e.Body.Error.Context)
	}
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Raw)
}

// do sends body as JSON and decodes a 2xx answer into out. It returns the
// tracking id of the call.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	trackingID := uuid.NewString()
	req.Header.Set(middleware.TrackingHeader, trackingID)
	req.Header.Set(middleware.EmitterHeader, "catalog-cli")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return trackingID, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return trackingID, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &apiError{Status: resp.StatusCode, Raw: string(raw)}
		_ = json.Unmarshal(raw, &apiErr.Body)
		return trackingID, apiErr
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return trackingID, fmt.Errorf("decode response: %w", err)
		}
	}
	return trackingID, nil
}
