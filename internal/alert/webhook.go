package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// DefaultWebhookTimeout bounds deliveries whose config sets no timeout.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookSettings is the channel-specific configuration decoded from an
// alert config's Settings map.
type WebhookSettings struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebhookNotifier delivers alerts as JSON POSTs to a configured URL.
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier. A nil client gets a
// default one bounded by DefaultWebhookTimeout.
func NewWebhookNotifier(client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	return &WebhookNotifier{client: client}
}

// Notify posts the payload to the config's URL. Any status outside 2xx is
// a delivery failure.
func (n *WebhookNotifier) Notify(ctx context.Context, cfg *core.AlertConfig, payload *core.AlertPayload) error {
	settings, err := DecodeWebhookSettings(cfg.Settings)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	return nil
}

// DecodeWebhookSettings validates and decodes a webhook settings map.
// Timeout accepts duration strings ("5s") as stored by JSON round-trips.
func DecodeWebhookSettings(settings map[string]any) (*WebhookSettings, error) {
	var out WebhookSettings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(settings); err != nil {
		return nil, fmt.Errorf("%w: webhook settings: %v", core.ErrInvalid, err)
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: webhook settings require a url", core.ErrInvalid)
	}
	return &out, nil
}
