package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"solflow/internal/models"
)

type fakeDelivery struct {
	appID     string
	eventType string
	payload   map[string]interface{}
	err       error
	calls     int
}

func (f *fakeDelivery) SendMessage(ctx context.Context, appID, eventType string, payload map[string]interface{}) error {
	f.calls++
	f.appID = appID
	f.eventType = eventType
	f.payload = payload
	return f.err
}

func TestDispatcher_DispatchSendsSignalPayload(t *testing.T) {
	delivery := &fakeDelivery{}
	d := NewDispatcher(delivery, "app-123")

	sig := models.Signal{
		Mint:          "MintA",
		SignalType:    models.SignalBreakout,
		WindowSeconds: 300,
		Severity:      2,
		Score:         0.9,
		CreatedAt:     time.Unix(1000, 0),
	}
	d.Dispatch(context.Background(), sig)

	if delivery.calls != 1 {
		t.Fatalf("expected exactly one delivery call, got %d", delivery.calls)
	}
	if delivery.appID != "app-123" {
		t.Errorf("expected appID app-123, got %q", delivery.appID)
	}
	if delivery.eventType != string(models.SignalBreakout) {
		t.Errorf("expected event type %q, got %q", models.SignalBreakout, delivery.eventType)
	}
	if delivery.payload["mint"] != "MintA" {
		t.Errorf("expected mint in payload, got %v", delivery.payload["mint"])
	}
}

// TestDispatcher_DeliveryErrorDoesNotPanic confirms a failed webhook
// delivery is logged rather than propagated, since Dispatch has no error
// return for the eventbus subscriber loop to handle.
func TestDispatcher_DeliveryErrorDoesNotPanic(t *testing.T) {
	delivery := &fakeDelivery{err: errors.New("webhook unreachable")}
	d := NewDispatcher(delivery, "app-123")

	d.Dispatch(context.Background(), models.Signal{Mint: "MintA", SignalType: models.SignalSurge})

	if delivery.calls != 1 {
		t.Fatalf("expected delivery to still be attempted once, got %d calls", delivery.calls)
	}
}

func TestNoopDelivery_LogsAndReturnsNil(t *testing.T) {
	n := NewNoopDelivery()
	if err := n.SendMessage(context.Background(), "app-1", "BREAKOUT", map[string]interface{}{"mint": "MintA"}); err != nil {
		t.Fatalf("expected noop delivery to never error, got %v", err)
	}
}
