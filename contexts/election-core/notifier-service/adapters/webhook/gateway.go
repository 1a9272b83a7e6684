package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"caucus/contexts/election-core/notifier-service/ports"
)

// Gateway posts chat messages to an incoming-webhook style endpoint. The
// payload shape matches the common {"channel": ..., "text": ...} contract.
type Gateway struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewGateway(url string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (g *Gateway) Post(ctx context.Context, message ports.ChatMessage) error {
	payload, err := json.Marshal(map[string]string{
		"channel": message.ChannelID,
		"text":    message.Text,
	})
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := g.client.Do(request)
	if err != nil {
		g.logger.Error("webhook post failed",
			"event", "notifier_webhook_post_failed",
			"module", "election-core/notifier-service",
			"layer", "adapter",
			"channel_id", message.ChannelID,
			"error", err.Error(),
		)
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		err := fmt.Errorf("webhook returned status %d", response.StatusCode)
		g.logger.Error("webhook post rejected",
			"event", "notifier_webhook_post_rejected",
			"module", "election-core/notifier-service",
			"layer", "adapter",
			"channel_id", message.ChannelID,
			"status", response.StatusCode,
		)
		return err
	}
	return nil
}

var _ ports.ChatGateway = (*Gateway)(nil)
