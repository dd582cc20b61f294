// Package events publishes domain events about committed orders.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced = "OrderPlaced"
	eventVersion     = 1
)

// Envelope wraps every event put on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlaced struct {
	OrderID       int64             `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	MemberID      int64             `json:"member_id"`
	TotalPrice    decimal.Decimal   `json:"total_price"`
	Currency      string            `json:"currency"`
	TransactionID string            `json:"transaction_id"`
	Items         []OrderPlacedItem `json:"items"`
	PlacedAt      time.Time         `json:"placed_at"`
}

type OrderPlacedItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Publisher is notified after an order has committed. Implementations must
// not block the caller on broker availability.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, traceID string, event OrderPlaced) error
}

// Noop discards events. It is used when no broker is configured.
type Noop struct{}

func (Noop) PublishOrderPlaced(context.Context, string, OrderPlaced) error { return nil }

func NewEnvelope(producer, traceID string, event OrderPlaced) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", EventOrderPlaced, err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPlaced,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(event.OrderID, 10),
		Payload:       payload,
	}, nil
}
