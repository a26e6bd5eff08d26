// Package events carries order events from the checkout unit of work to Kafka
// through a transactional outbox.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/google/uuid"
)

const TypeOrderPaid = "order.paid"

// Record is one outbox row. ID is assigned by the store.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

type OrderPaid struct {
	EventID   string          `json:"event_id"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Total     string          `json:"total"`
	Items     []OrderPaidItem `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderPaidItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// NewOrderPaidRecord builds the outbox row announcing a paid order, keyed by order id.
func NewOrderPaidRecord(order domain.Order, now time.Time) (Record, error) {
	evt := OrderPaid{
		EventID:   uuid.NewString(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total.StringFixed(2),
		Items:     make([]OrderPaidItem, 0, len(order.Items)),
		CreatedAt: now,
	}
	for _, li := range order.Items {
		evt.Items = append(evt.Items, OrderPaidItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.StringFixed(2),
		})
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return Record{}, fmt.Errorf("marshal order event: %w", err)
	}
	return Record{
		EventID:   evt.EventID,
		Type:      TypeOrderPaid,
		Key:       order.ID,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}
