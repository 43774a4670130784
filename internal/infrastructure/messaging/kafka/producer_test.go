package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/PlotAtlas/internal/config"
	pkgerrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	written   []kafka.Message
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func newTestProducer(w WriterInterface) *Producer {
	return NewProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
}

func TestProducerConfigFromConfig(t *testing.T) {
	cfg := ProducerConfigFromConfig(config.KafkaConfig{Brokers: []string{"b:9092"}, MaxRetries: 2})
	assert.Equal(t, []string{"b:9092"}, cfg.Brokers)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 1, cfg.BatchSize)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"},
	}))
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}}))
}

func TestSecurityConfig_UnsupportedMechanism(t *testing.T) {
	_, err := SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	m, err := SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", m.Name())
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "listings.changed",
		Key:     []byte("Jeddah"),
		Value:   []byte(`{"type":"updated"}`),
		Headers: map[string]string{"a": "b"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "listings.changed", w.written[0].Topic)
	assert.Equal(t, []byte("Jeddah"), w.written[0].Key)
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, []kafka.Header{{Key: "a", Value: []byte("b")}}, w.written[0].Headers)
	assert.Equal(t, int64(1), p.Stats().MessagesSent)
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, &ProducerMessage{Value: []byte("x")}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t"}))
	big := make([]byte, 2*1024*1024)
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}))
}

func TestProducer_PublishWriteError(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return errors.New("broker down") }}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueueError))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestProducer_PublishBatchPartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return kafka.WriteErrors{nil, errors.New("too large"), nil}
	}}
	p := newTestProducer(w)
	msgs := []*ProducerMessage{
		{Topic: "t", Value: []byte("1")},
		{Topic: "t", Value: []byte("2")},
		{Topic: "t", Value: []byte("3")},
	}

	res, err := p.PublishBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestProducer_PublishBatchEmpty(t *testing.T) {
	_, err := newTestProducer(&mockKafkaWriter{}).PublishBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProducer_CloseIdempotent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

//Personal.AI order the ending
