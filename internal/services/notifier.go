package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"
	"price-alert-engine/pkg/logger"

	"go.uber.org/zap"
)

// WebhookNotifier delivers triggered evaluations as JSON POSTs to a
// configured URL; the conversational layer consumes them downstream.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook-backed notifier.
func NewWebhookNotifier(cfg *config.NotifierConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// notificationPayload is the wire format of one delivery.
type notificationPayload struct {
	OwnerID string                  `json:"owner_id"`
	Result  models.EvaluationResult `json:"result"`
}

// Notify posts the evaluation result. Any non-2xx response is a
// delivery failure.
func (n *WebhookNotifier) Notify(ctx context.Context, ownerID string, result models.EvaluationResult) error {
	body, err := json.Marshal(notificationPayload{OwnerID: ownerID, Result: result})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes triggered evaluations to the log. Used when no
// webhook URL is configured, so triggers are still visible.
type LogNotifier struct{}

// Notify logs the trigger and always succeeds.
func (LogNotifier) Notify(ctx context.Context, ownerID string, result models.EvaluationResult) error {
	logger.GetLogger().WithContext(ctx).Info("Alert triggered",
		zap.String("owner_id", ownerID),
		zap.String("alert_id", result.Condition.ID),
		zap.String("symbol", result.Condition.Symbol),
		zap.String("direction", string(result.Condition.Predicate.Direction)),
		zap.Float64("threshold", result.Condition.Predicate.Threshold),
		zap.Float64("observed", result.ObservedValue),
	)
	return nil
}
