package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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

func TestNewProducer_RequiresTopicAndBrokers(t *testing.T) {
	_, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)

	_, err = NewProducer(WithTopic("t"), WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)

	p, err := NewProducer(WithTopic("t"), WithBrokers([]string{"localhost:9092"}), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "t", p.Topic())
}

func TestProducer_Publish(t *testing.T) {
	w := &memWriter{}
	p, err := NewProducer(WithTopic("progress"), WithWriter(w), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), []byte("run"), map[string]int{"epoch": 1}))
	require.NoError(t, p.Publish(context.Background(), nil, "raw"))
	require.Len(t, w.msgs, 2)
	assert.JSONEq(t, `{"epoch":1}`, string(w.msgs[0].Value))
	assert.Equal(t, []byte("run"), w.msgs[0].Key)
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.msgs.WithLabelValues("ok")))

	w.err = errors.New("leader not available")
	err = p.Publish(context.Background(), nil, "x")
	assert.ErrorContains(t, err, "publish to progress")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.msgs.WithLabelValues("error")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
