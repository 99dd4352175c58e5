package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/rs/zerolog"
)

// FranzEmptyResponse is the failure code for a reply without a body.
const FranzEmptyResponse = "Got empty response from the franz."

// CatalogPublishTopic is the franz stream catalog events go to, prefixed
// with the realm.
const CatalogPublishTopic = "np.catalogs.catalog_publish_v1"

// EventHeader is the common header of franz events.
type EventHeader struct {
	EventID    string    `json:"event_id"`
	TrackingID string    `json:"tracking_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CatalogPublished is pushed to franz when a catalog is about to go live.
type CatalogPublished struct {
	CatalogCode string      `json:"catalog_code"`
	TitleCode   string      `json:"title_code"`
	Header      EventHeader `json:"header"`
	PublishedAt time.Time   `json:"published_at"`
}

// FranzConfig configures the franz client.
type FranzConfig struct {
	BaseURL string
	Realm   string
	Timeout time.Duration
	Retry   retry.Policy
}

// Franz pushes events to the event bus gateway.
type Franz struct {
	baseURL string
	realm   string
	policy  retry.Policy
	caller  jsonCaller
	log     zerolog.Logger
}

// NewFranz creates a franz client. Timeouts and 5xx are retried.
func NewFranz(cfg FranzConfig, m *metrics.Recorder, log zerolog.Logger) *Franz {
	policy := cfg.Retry
	policy.AttemptTimeout = cfg.Timeout
	policy.Retryable = nil
	return &Franz{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		realm:   cfg.Realm,
		policy:  policy,
		caller:  newJSONCaller("franz", 0, m),
		log:     log.With().Str("component", "franz").Logger(),
	}
}

// Topic returns the full stream name for catalog events.
func (f *Franz) Topic() string {
	return f.realm + "." + CatalogPublishTopic
}

// PushCatalogPublished sends a catalog event.
func (f *Franz) PushCatalogPublished(ctx context.Context, event CatalogPublished) error {
	url := f.baseURL + "/streams/api/v1/pushEvent/" + f.Topic()

	var code string
	err := f.policy.Do(ctx, func(ctx context.Context, attempt int) (int, error) {
		code = ""
		resp, err := f.caller.do(ctx, http.MethodPost, url, nil, event)
		if err != nil {
			return 0, err
		}
		code = franzErrorCode(resp)
		if code == "" {
			return resp.Status, nil
		}
		f.log.Warn().
			Str("catalog_code", event.CatalogCode).
			Int("status", resp.Status).
			Str("error_code", code).
			Msg("franz rejected event")
		return resp.Status, &retry.StatusError{Status: resp.Status}
	})
	if err == nil {
		return nil
	}
	if timedOut(err) {
		code = "TIMEOUT"
	} else if code == "" {
		code = "unreachable"
	}
	return &CallError{Subsystem: "franz", Code: code, Err: err}
}

// franzErrorCode returns "" for an accepted event, or the code that goes
// after "franz:" otherwise.
func franzErrorCode(resp *response) string {
	var payload struct {
		Status    string          `json:"status"`
		ErrorCode json.RawMessage `json:"error_code"`
	}
	body := strings.TrimSpace(string(resp.Body))
	if body != "" {
		_ = json.Unmarshal([]byte(body), &payload)
	}

	if payload.Status == "error" || resp.Status >= 400 {
		if code := rawText(payload.ErrorCode); code != "" {
			return code
		}
		return strconv.Itoa(resp.Status)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return strconv.Itoa(resp.Status)
	}
	if body == "" {
		return FranzEmptyResponse
	}
	return ""
}
