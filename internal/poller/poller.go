package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type HistoryInvalidator interface {
	InvalidateCustomer(ctx context.Context, customerID int64) error
}

type ChartInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Poller drops the cached views an order.placed event makes stale.
type Poller struct {
	reader  MessageReader
	history HistoryInvalidator
	charts  ChartInvalidator
	backoff time.Duration
	log     *zap.Logger
}

func NewReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(reader MessageReader, history HistoryInvalidator, charts ChartInvalidator, log *zap.Logger) *Poller {
	return &Poller{
		reader:  reader,
		history: history,
		charts:  charts,
		backoff: time.Second,
		log:     log.Named("poller"),
	}
}

func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}
		if err := p.handle(ctx, m); err != nil {
			p.log.Warn("message skipped", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	if t := header(m, "event_type"); t != "" && t != recordstore.EventOrderPlaced {
		return nil
	}

	var payload recordstore.OrderPlaced
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		return fmt.Errorf("parse order placed: %w", err)
	}
	if payload.CustomerID == 0 {
		return errors.New("missing customer_id")
	}

	var errs []error
	if err := p.history.InvalidateCustomer(ctx, payload.CustomerID); err != nil {
		errs = append(errs, fmt.Errorf("invalidate order history: %w", err))
	}
	if err := p.charts.Invalidate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("invalidate charts: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.log.Debug("caches invalidated",
		zap.Int64("order_id", payload.OrderID),
		zap.Int64("customer_id", payload.CustomerID))
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
