package notificator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fil-demos/synapse-kit/internal/models"
)

// WebhookNotificator posts alerts as JSON.
type WebhookNotificator struct {
	url    string
	client *http.Client
}

func NewWebhookNotificator(url string) *WebhookNotificator {
	return &WebhookNotificator{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotificator) Name() string { return "webhook" }

func (w *WebhookNotificator) SendNotification(ctx context.Context, alert *models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
