package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/rs/zerolog"
)

// Prodo failure codes that do not come from a response body.
const (
	ProdoTimeout          = "TIMEOUT"
	ProdoFailed           = "Failed"
	ProdoFailedResultCode = "failed_result_code"
)

// ProdoConfig configures the prodo client.
type ProdoConfig struct {
	BaseURL string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	Retry   retry.Policy
}

// Prodo calls the prepare and activated hooks of the product service.
type Prodo struct {
	baseURL string
	policy  retry.Policy
	caller  jsonCaller
	log     zerolog.Logger
}

// NewProdo creates a prodo client. Every failed attempt is retried within
// the policy budget.
func NewProdo(cfg ProdoConfig, m *metrics.Recorder, log zerolog.Logger) *Prodo {
	policy := cfg.Retry
	policy.AttemptTimeout = cfg.Timeout
	policy.Retryable = func(status int, err error) bool {
		return status < 300 || status >= 400
	}
	return &Prodo{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		policy:  policy,
		caller:  newJSONCaller("prodo", 0, m),
		log:     log.With().Str("component", "prodo").Logger(),
	}
}

// Prepare asks prodo to get ready for a catalog.
func (p *Prodo) Prepare(ctx context.Context, catalogCode string) error {
	return p.call(ctx, "/catalog/api/v1/prepare", catalogCode)
}

// Activated tells prodo a catalog went live.
func (p *Prodo) Activated(ctx context.Context, catalogCode string) error {
	return p.call(ctx, "/catalog/api/v1/activated", catalogCode)
}

func (p *Prodo) call(ctx context.Context, path, catalogCode string) error {
	var last *response
	err := p.policy.Do(ctx, func(ctx context.Context, attempt int) (int, error) {
		last = nil
		resp, err := p.caller.do(ctx, http.MethodPost, p.baseURL+path, nil, map[string]string{"catalog_code": catalogCode})
		if err != nil {
			p.log.Warn().Err(err).Str("catalog_code", catalogCode).Int("attempt", attempt+1).Msg("prodo call failed")
			return 0, err
		}
		last = resp
		if resp.Status >= 200 && resp.Status < 300 && prodoBodyError(resp.Body) == "" {
			return resp.Status, nil
		}
		p.log.Warn().Str("catalog_code", catalogCode).Int("status", resp.Status).Int("attempt", attempt+1).Msg("prodo call rejected")
		return resp.Status, &retry.StatusError{Status: resp.Status}
	})
	if err == nil {
		return nil
	}
	return &CallError{Subsystem: "prodo", Code: prodoCode(err, last), Err: err}
}

func prodoCode(err error, last *response) string {
	if timedOut(err) {
		return ProdoTimeout
	}
	if last == nil {
		return ProdoFailed
	}
	if isTimeoutStatus(last.Status) {
		return ProdoTimeout
	}
	if last.Status >= 300 && last.Status < 400 {
		return ProdoFailed
	}
	if code := prodoBodyError(last.Body); code != "" {
		return code
	}
	return ProdoFailedResultCode
}

// prodoBodyError extracts "<code> <message>" from a body of the form
// {"success":false,"error":{"code":X,"message":[...]}}.
func prodoBodyError(body []byte) string {
	var payload struct {
		Success *bool `json:"success"`
		Error   *struct {
			Code    json.RawMessage `json:"code"`
			Message json.RawMessage `json:"message"`
		} `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if payload.Success == nil || *payload.Success || payload.Error == nil {
		return ""
	}

	code := rawText(payload.Error.Code)
	if code == "" {
		return ""
	}
	if msg := messageText(payload.Error.Message); msg != "" {
		return fmt.Sprintf("%s %s", code, msg)
	}
	return code
}

// rawText renders a JSON scalar without quotes.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func messageText(raw json.RawMessage) string {
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, " ")
	}
	return rawText(raw)
}
