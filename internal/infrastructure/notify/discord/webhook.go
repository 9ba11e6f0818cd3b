package discord

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/fpl-pulse/internal/platform/logging"
	"github.com/riskibarqy/fpl-pulse/internal/platform/resilience"
)

// Discord truncates content above this; cut ourselves so the request
// is never rejected outright.
const maxContentLength = 2000

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errDiscordTransient = crerr.New("discord transient failure")

type WebhookConfig struct {
	HTTPClient *http.Client
	// WebhookURL is the default channel; URLByHint overrides per
	// routing hint.
	WebhookURL     string
	URLByHint      map[string]string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Webhook posts composed messages to Discord webhook channels.
type Webhook struct {
	client         *http.Client
	webhookURL     string
	urlByHint      map[string]string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

type webhookPayload struct {
	Content string `json:"content"`
}

func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	webhookURL, err := validateWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid webhook url")
	}
	urlByHint := make(map[string]string, len(cfg.URLByHint))
	for hint, raw := range cfg.URLByHint {
		validated, err := validateWebhookURL(raw)
		if err != nil {
			return nil, crerr.Wrapf(err, "invalid webhook url for hint %q", hint)
		}
		urlByHint[hint] = validated
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Webhook{
		client:         httpClient,
		webhookURL:     webhookURL,
		urlByHint:      urlByHint,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}, nil
}

// Send posts one message. The routing hint selects an override channel
// when one is configured, otherwise everything lands on the default.
func (w *Webhook) Send(ctx context.Context, body, routingHint string) error {
	if strings.TrimSpace(body) == "" {
		return crerr.New("message body is required")
	}

	if w.circuitEnabled {
		if err := w.breaker.Allow(); err != nil {
			w.logger.WarnContext(ctx, "discord circuit breaker rejected request", "state", w.breaker.State())
			return fmt.Errorf("discord is temporarily unavailable: %w", err)
		}
	}

	if len(body) > maxContentLength {
		body = body[:maxContentLength-3] + "..."
	}

	payload, err := json.Marshal(webhookPayload{Content: body})
	if err != nil {
		return crerr.Wrap(err, "marshal webhook payload")
	}

	targetURL := w.urlFor(routingHint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(string(payload)))
	if err != nil {
		return crerr.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		callErr := fmt.Errorf("%w: post webhook hint=%s: %v", errDiscordTransient, routingHint, err)
		w.recordCircuitResult(callErr)
		return callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRetryableStatus(resp.StatusCode) {
			callErr := fmt.Errorf("%w: post webhook status=%d hint=%s body=%s",
				errDiscordTransient, resp.StatusCode, routingHint, strings.TrimSpace(string(raw)))
			w.recordCircuitResult(callErr)
			return callErr
		}
		callErr := fmt.Errorf("post webhook status=%d hint=%s body=%s",
			resp.StatusCode, routingHint, strings.TrimSpace(string(raw)))
		w.recordCircuitResult(callErr)
		return callErr
	}

	w.recordCircuitResult(nil)
	return nil
}

func (w *Webhook) urlFor(routingHint string) string {
	if override, ok := w.urlByHint[routingHint]; ok {
		return override
	}
	return w.webhookURL
}

func (w *Webhook) recordCircuitResult(err error) {
	if !w.circuitEnabled || w.breaker == nil {
		return
	}
	if err == nil {
		w.breaker.RecordSuccess()
		return
	}
	if stderrors.Is(err, errDiscordTransient) {
		w.breaker.RecordFailure()
		return
	}
	w.breaker.RecordSuccess()
}

func validateWebhookURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return candidate, nil
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
