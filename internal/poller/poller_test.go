package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"github.com/rtbecker76/universal-electronics2/internal/cache"
	"github.com/rtbecker76/universal-electronics2/internal/charts"
	"github.com/rtbecker76/universal-electronics2/internal/history"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
)

type MockReader struct {
	messages chan kafkaGo.Message
	errs     chan error
	closed   bool
}

func newMockReader() *MockReader {
	return &MockReader{messages: make(chan kafkaGo.Message, 8), errs: make(chan error, 8)}
}

func (r *MockReader) ReadMessage(ctx context.Context) (kafkaGo.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case err := <-r.errs:
		return kafkaGo.Message{}, err
	case <-ctx.Done():
		return kafkaGo.Message{}, ctx.Err()
	}
}

func (r *MockReader) Close() error {
	r.closed = true
	return nil
}

type env struct {
	mr     *miniredis.Miniredis
	poller *Poller
	reader *MockReader
}

func setup(t *testing.T) *env {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := cache.NewRedisCache(client, time.Minute)
	reader := newMockReader()
	p := NewPoller(reader,
		history.New(nil, c, zap.NewNop()),
		charts.New(nil, c, zap.NewNop()),
		zap.NewNop())
	p.backoff = time.Millisecond
	return &env{mr: mr, poller: p, reader: reader}
}

func (e *env) seed(t *testing.T) {
	require.NoError(t, e.mr.Set("storefront:history:orders:7", "[]"))
	require.NoError(t, e.mr.Set("storefront:history:orders:8", "[]"))
	require.NoError(t, e.mr.Set("storefront:charts:in_stock", "{}"))
}

func orderPlacedMessage(t *testing.T, customerID int64) kafkaGo.Message {
	value, err := json.Marshal(recordstore.OrderPlaced{OrderID: 11, UserID: "alice", CustomerID: customerID})
	require.NoError(t, err)
	return kafkaGo.Message{
		Key:     []byte("11"),
		Value:   value,
		Headers: []kafkaGo.Header{{Key: "event_type", Value: []byte(recordstore.EventOrderPlaced)}},
	}
}

func TestHandle_InvalidatesCustomerHistoryAndCharts(t *testing.T) {
	e := setup(t)
	e.seed(t)

	require.NoError(t, e.poller.handle(context.Background(), orderPlacedMessage(t, 7)))

	assert.False(t, e.mr.Exists("storefront:history:orders:7"))
	assert.True(t, e.mr.Exists("storefront:history:orders:8"))
	assert.False(t, e.mr.Exists("storefront:charts:in_stock"))
}

func TestHandle_IgnoresOtherEventTypes(t *testing.T) {
	e := setup(t)
	e.seed(t)

	m := orderPlacedMessage(t, 7)
	m.Headers = []kafkaGo.Header{{Key: "event_type", Value: []byte("order.cancelled")}}
	require.NoError(t, e.poller.handle(context.Background(), m))

	assert.True(t, e.mr.Exists("storefront:history:orders:7"))
}

func TestHandle_RejectsMalformedPayloads(t *testing.T) {
	e := setup(t)

	err := e.poller.handle(context.Background(), kafkaGo.Message{Value: []byte("not json")})
	assert.Error(t, err)

	err = e.poller.handle(context.Background(), kafkaGo.Message{Value: []byte(`{"order_id":1}`)})
	assert.EqualError(t, err, "missing customer_id")
}

func TestHandle_ReportsCacheFailures(t *testing.T) {
	e := setup(t)
	e.mr.SetError("server down")

	err := e.poller.handle(context.Background(), orderPlacedMessage(t, 7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate order history")
	assert.Contains(t, err.Error(), "invalidate charts")
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	e := setup(t)
	e.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.poller.Run(ctx)
		close(done)
	}()

	e.reader.errs <- errors.New("connection reset")
	e.reader.messages <- orderPlacedMessage(t, 7)

	require.Eventually(t, func() bool {
		return !e.mr.Exists("storefront:history:orders:7")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	e.poller.Close()
	assert.True(t, e.reader.closed)
}

func TestPoller_ConsumesFromKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	ctx := context.Background()
	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})
	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	const topic = "order-events-poller-test"
	writer := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	defer writer.Close()

	e := setup(t)
	e.seed(t)
	p := NewPoller(NewReader(topic, "poller-test", brokers...), e.poller.history, e.poller.charts, zap.NewNop())
	defer p.Close()

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	require.Eventually(t, func() bool {
		return writer.WriteMessages(runCtx, orderPlacedMessage(t, 7)) == nil
	}, 30*time.Second, time.Second)

	go p.Run(runCtx)

	require.Eventually(t, func() bool {
		return !e.mr.Exists("storefront:history:orders:7")
	}, 45*time.Second, 200*time.Millisecond)
}
