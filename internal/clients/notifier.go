package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/rs/zerolog"
)

// Tools that submit catalogs and receive status notifications.
const (
	ToolCatool  = "catool"
	ToolCoupons = "coupons"
	ToolManual  = "manual"
)

// Tools lists every known tool.
var Tools = []string{ToolCatool, ToolCoupons, ToolManual}

// KnownTool reports whether name is a tool the service accepts.
func KnownTool(name string) bool {
	for _, t := range Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Notification statuses.
const (
	NotifyActivated  = "ACTIVATED"
	NotifyFailed     = "FAILED"
	NotifyTerminated = "TERMINATED"
)

// StatusNotification is sent to a tool when one of its publishes settles.
type StatusNotification struct {
	PublishID   string `json:"-"`
	TitleCode   string `json:"-"`
	CatalogCode string `json:"catalog_code"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

// ToolConfig is the webhook of one tool.
type ToolConfig struct {
	BaseURL string
	// Secret is sent as x-auth-secret. Only catool checks it.
	Secret string
}

// NotifierConfig configures tool webhooks.
type NotifierConfig struct {
	Tools   map[string]ToolConfig
	Timeout time.Duration
	Retry   retry.Policy
	Breaker BreakerConfig
}

// Notifier sends best-effort status notifications to tool webhooks.
type Notifier struct {
	tools    map[string]ToolConfig
	policy   retry.Policy
	caller   jsonCaller
	breakers map[string]*Breaker
	metrics  *metrics.Recorder
	log      zerolog.Logger
}

// NewNotifier creates a notifier with one breaker per tool.
func NewNotifier(cfg NotifierConfig, m *metrics.Recorder, log zerolog.Logger) *Notifier {
	log = log.With().Str("component", "notifier").Logger()
	policy := cfg.Retry
	policy.AttemptTimeout = cfg.Timeout

	breakers := make(map[string]*Breaker, len(cfg.Tools))
	for name := range cfg.Tools {
		breakers[name] = NewBreaker("tool:"+name, cfg.Breaker, log)
	}
	return &Notifier{
		tools:    cfg.Tools,
		policy:   policy,
		caller:   newJSONCaller("tool", 0, m),
		breakers: breakers,
		metrics:  m,
		log:      log,
	}
}

// toolsContext is the toolscontext header value.
func toolsContext(title string) string {
	data, _ := json.Marshal(map[string]string{
		"environment": catalog.Realm(title),
		"title":       catalog.TitleName(title),
	})
	return string(data)
}

// Notify sends n to the webhook of tool.
func (n *Notifier) Notify(ctx context.Context, tool string, note StatusNotification) error {
	cfg, ok := n.tools[tool]
	if !ok || cfg.BaseURL == "" {
		return fmt.Errorf("no webhook configured for tool %q", tool)
	}
	breaker := n.breakers[tool]
	if !breaker.Allow() {
		return ErrCircuitOpen
	}

	url := fmt.Sprintf("%s/api/v1/catalog_publish/%s/set_status/", strings.TrimRight(cfg.BaseURL, "/"), note.PublishID)
	header := http.Header{}
	header.Set("toolscontext", toolsContext(note.TitleCode))
	if tool == ToolCatool && cfg.Secret != "" {
		header.Set("x-auth-secret", cfg.Secret)
	}

	err := n.policy.Do(ctx, func(ctx context.Context, attempt int) (int, error) {
		resp, err := n.caller.do(ctx, http.MethodPut, url, header, note)
		if err != nil {
			return 0, err
		}
		if n.metrics != nil {
			n.metrics.RecordClientRequest(tool, fmt.Sprint(resp.Status))
		}
		if resp.Status < 200 || resp.Status >= 300 {
			return resp.Status, &retry.StatusError{Status: resp.Status}
		}
		return resp.Status, nil
	})
	if err != nil {
		breaker.RecordFailure(err)
		return fmt.Errorf("notify %s: %w", tool, err)
	}
	breaker.RecordSuccess()
	n.log.Debug().
		Str("tool", tool).
		Str("publish_id", note.PublishID).
		Str("status", note.Status).
		Msg("Tool notified")
	return nil
}
