package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "forecast.results", []byte("AAPL"), map[string]int{"days": 30}))
	require.NoError(t, p.Publish(context.Background(), "forecast.results", nil, "raw"))
	require.NoError(t, p.PublishMessage(context.Background(), "stockcast.logs", []byte(`{"a":1}`)))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "AAPL", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"days":30}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "stockcast.logs", w.msgs[2].Topic)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerPublishErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := newProducer(&memWriter{err: boom}, "gzip")

	assert.ErrorIs(t, p.Publish(context.Background(), "t", nil, "x"), boom)
	assert.Error(t, p.Publish(context.Background(), "", nil, "x"))
	assert.Error(t, p.Publish(context.Background(), "t", nil, func() {}))
}

func TestProducerPublishBatch(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "lz4")

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	require.NoError(t, p.PublishBatch(context.Background(), "t", []Message{
		{Key: []byte("a"), Value: 1},
		{Key: []byte("b"), Value: []byte("two")},
	}))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "1", string(w.msgs[0].Value))
	assert.Equal(t, w.msgs[0].Time, w.msgs[1].Time)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

type stubHandler struct {
	topic string
	fails int
	calls int
	panic bool
	got   [][]byte
	trace string
}

func (h *stubHandler) Topic() string { return h.topic }

func (h *stubHandler) Handle(ctx context.Context, data []byte) error {
	h.calls++
	h.trace = TraceID(ctx)
	if h.panic {
		panic("bad payload")
	}
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	h.got = append(h.got, data)
	return nil
}

func testConsumer(retry int) *Consumer {
	return newConsumer(&ConsumerConfig{
		GroupID:     "test",
		WorkerCount: 1,
		BufferSize:  1,
		RetryMax:    retry,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	})
}

func TestConsumerRetriesThenSucceeds(t *testing.T) {
	c := testConsumer(3)
	h := &stubHandler{topic: "forecast.requests", fails: 2}
	c.RegisterHandler(h)

	var errs int
	c.WithConsumerHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }})

	c.process(&message{topic: h.topic, km: kafka.Message{Value: []byte("job")}})
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, [][]byte{[]byte("job")}, h.got)
	assert.Equal(t, 2, errs)
}

func TestConsumerExhaustedGoesToDLQ(t *testing.T) {
	c := testConsumer(1)
	dlq := &memWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "forecast.requests.dlq"
	h := &stubHandler{topic: "forecast.requests", fails: 10}
	c.RegisterHandler(h)

	c.process(&message{topic: h.topic, km: kafka.Message{Key: []byte("AAPL"), Value: []byte("job")}})
	assert.Equal(t, 2, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "forecast.requests.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "AAPL", string(dlq.msgs[0].Key))
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[len(dlq.msgs[0].Headers)-1].Key)
}

func TestConsumerRecoversPanics(t *testing.T) {
	c := testConsumer(0)
	h := &stubHandler{topic: "t", panic: true}
	c.RegisterHandler(h)
	assert.NotPanics(t, func() {
		c.process(&message{topic: "t", km: kafka.Message{Value: []byte("x")}})
	})
	assert.Equal(t, 1, h.calls)
}

func TestConsumerHookErrorSkipsRetries(t *testing.T) {
	c := testConsumer(5)
	h := &stubHandler{topic: "t"}
	c.RegisterHandler(h)
	c.WithConsumerHook(NewHookChain(HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			panic("hook exploded")
		},
	}))

	c.process(&message{topic: "t", km: kafka.Message{Value: []byte("x")}})
	assert.Zero(t, h.calls)
}

func TestTraceHook(t *testing.T) {
	c := testConsumer(0)
	h := &stubHandler{topic: "t"}
	c.RegisterHandler(h)
	c.WithConsumerHook(NewHookChain(TraceHook(), nil))

	c.process(&message{topic: "t", km: kafka.Message{
		Value:   []byte("x"),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}},
	}})
	assert.Equal(t, "abc", h.trace)
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c := testConsumer(0)
	first := &stubHandler{topic: "t"}
	c.RegisterHandler(first)
	c.RegisterHandler(&stubHandler{topic: "t"})
	assert.Same(t, first, c.handlers["t"])
}

func TestHookChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before-"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after-"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), mk("b"))
	ctx, km, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", km, data, nil)

	assert.Equal(t, ">ab", string(data))
	assert.Equal(t, []string{"before-a", "before-b", "after-b", "after-a"}, order)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(struct {
		Ticker string `json:"ticker"`
	}{"AAPL"})
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "AAPL", out["ticker"])
}

func TestPublishBatchHeaders(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "gzip")
	require.NoError(t, p.PublishBatch(context.Background(), "t", []Message{
		{Key: []byte("AAPL"), Value: "x", Headers: map[string]string{"trace_id": "abc", "b": "2"}},
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []kafka.Header{{Key: "b", Value: []byte("2")}, {Key: "trace_id", Value: []byte("abc")}}, w.msgs[0].Headers)
	assert.Equal(t, "abc", ExtractTraceID(w.msgs[0]))
}
