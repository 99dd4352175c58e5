// Package clients talks to the services a publish depends on: prodo for the
// prepare and activated callbacks, franz for catalog events and the tool
// webhooks that receive status notifications.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/metrics"
)

const maxResponseBody = 1 << 20

// CallError is a failed call to a dependency. Its text is the task failure
// string, {subsystem}:{code}.
type CallError struct {
	Subsystem string
	Code      string
	Err       error
}

func (e *CallError) Error() string {
	return e.Subsystem + ":" + e.Code
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// response is one HTTP exchange.
type response struct {
	Status int
	Body   []byte
}

// jsonCaller sends JSON requests without following redirects.
type jsonCaller struct {
	service string
	http    *http.Client
	metrics *metrics.Recorder
}

func newJSONCaller(service string, timeout time.Duration, m *metrics.Recorder) jsonCaller {
	return jsonCaller{
		service: service,
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metrics: m,
	}
}

func (c jsonCaller) do(ctx context.Context, method, url string, header http.Header, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record("error", start)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.record(strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return &response{Status: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	return &response{Status: resp.StatusCode, Body: data}, nil
}

func (c jsonCaller) record(code string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordCriticalCall(c.service, code, time.Since(start))
	}
}

func isTimeoutStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout
}

// timedOut reports whether a failed retry run ended in a timeout.
func timedOut(err error) bool {
	var re *retry.Error
	if errors.As(err, &re) {
		return re.Timeout
	}
	return retry.IsTimeout(err)
}
