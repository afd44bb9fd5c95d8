// Package alerts delivers emitted, non-blocklisted signals to configured
// webhook subscribers via Svix, grounded on the teacher's
// internal/webhooks/svix_client.go.
package alerts

import (
	"context"
	"fmt"

	svix "github.com/svix/svix-webhooks/go"
	svixmodels "github.com/svix/svix-webhooks/go/models"

	"solflow/internal/logging"
	"solflow/internal/models"
)

// Delivery is the interface Dispatcher sends through — letting a Svix
// client be swapped for a no-op implementation when alerting is
// unconfigured, the same shape as the teacher's WebhookDelivery.
type Delivery interface {
	SendMessage(ctx context.Context, appID, eventType string, payload map[string]interface{}) error
}

// SvixDelivery wraps the Svix Go SDK.
type SvixDelivery struct {
	client *svix.Svix
}

func NewSvixDelivery(authToken string) (*SvixDelivery, error) {
	client, err := svix.New(authToken, nil)
	if err != nil {
		return nil, fmt.Errorf("create svix client: %w", err)
	}
	return &SvixDelivery{client: client}, nil
}

func (s *SvixDelivery) SendMessage(ctx context.Context, appID, eventType string, payload map[string]interface{}) error {
	_, err := s.client.Message.Create(ctx, appID, svixmodels.MessageIn{
		EventType: eventType,
		Payload:   payload,
	}, nil)
	if err != nil {
		return fmt.Errorf("svix send message: %w", err)
	}
	return nil
}

// NoopDelivery logs instead of delivering, used when no Svix token is
// configured.
type NoopDelivery struct{ log *logging.Logger }

func NewNoopDelivery() *NoopDelivery { return &NoopDelivery{log: logging.New("alerts/noop")} }

func (n *NoopDelivery) SendMessage(_ context.Context, appID, eventType string, _ map[string]interface{}) error {
	n.log.Printf("send message: app=%s type=%s", appID, eventType)
	return nil
}

// Dispatcher delivers Signal events received from the eventbus to the
// configured webhook application.
type Dispatcher struct {
	delivery Delivery
	appID    string
	log      *logging.Logger
}

func NewDispatcher(delivery Delivery, appID string) *Dispatcher {
	return &Dispatcher{delivery: delivery, appID: appID, log: logging.New("Alerts")}
}

// Dispatch sends one signal as a webhook message. The caller (the
// eventbus subscriber loop in cmd/solflow/main.go) is responsible for only handing this
// already-blocklist-filtered signals, since the flush coordinator never
// publishes a blocked mint's signal onto the bus in the first place.
func (d *Dispatcher) Dispatch(ctx context.Context, sig models.Signal) {
	payload := map[string]interface{}{
		"mint":           sig.Mint,
		"signal_type":    string(sig.SignalType),
		"window_seconds": sig.WindowSeconds,
		"severity":       sig.Severity,
		"score":          sig.Score,
		"created_at":     sig.CreatedAt,
	}
	if err := d.delivery.SendMessage(ctx, d.appID, string(sig.SignalType), payload); err != nil {
		d.log.Printf("delivery failed for mint %s signal %s: %v", sig.Mint, sig.SignalType, err)
	}
}
