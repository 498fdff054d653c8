package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "order.placed"

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// OrderPlaced is the payload of an order.placed event.
type OrderPlaced struct {
	OrderID    int64             `json:"order_id"`
	UserID     string            `json:"user_id"`
	CustomerID int64             `json:"customer_id"`
	Total      decimal.Decimal   `json:"total"`
	Lines      []OrderPlacedLine `json:"lines"`
	PlacedAt   time.Time         `json:"placed_at"`
}

type OrderPlacedLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
}

func newOrderPlacedEvent(order Record, lines []Record) (*OutboxEvent, error) {
	payload := OrderPlaced{
		OrderID:    order.Int64("order_id"),
		UserID:     order.String("user_id"),
		CustomerID: order.Int64("customer_id"),
		Total:      decimal.Zero,
		PlacedAt:   order.Time("order_date"),
	}
	for _, l := range lines {
		cost := l.Decimal("cost")
		payload.Total = payload.Total.Add(cost)
		payload.Lines = append(payload.Lines, OrderPlacedLine{
			ProductID: l.Int64("product_id"),
			Quantity:  l.Int64("quantity"),
			Cost:      cost,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order placed payload: %w", err)
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: strconv.FormatInt(payload.OrderID, 10),
		EventType:   EventOrderPlaced,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func insertOutboxEvent(ctx context.Context, q querier, e *OutboxEvent) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID.String(), e.AggregateID, e.EventType, string(e.Payload), e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetUnprocessedEvents returns the oldest events not yet published.
func (s *SQLStore) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at FROM outbox_events
		 WHERE processed_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var (
			e       OutboxEvent
			id      string
			payload string
			created any
		)
		if err := rows.Scan(&id, &e.AggregateID, &e.EventType, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse outbox event id: %w", err)
		}
		if e.CreatedAt, err = toTime(created); err != nil {
			return nil, fmt.Errorf("parse outbox event time: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (s *SQLStore) MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = $1 WHERE id = $2`, time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("mark outbox event %s: %w", id, err)
	}
	return nil
}
