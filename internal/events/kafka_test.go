package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	pub := newKafkaPublisher(w, "ballots", 0, zap.NewNop())

	at := time.Date(2024, 4, 19, 9, 30, 0, 0, time.UTC)
	evt := NewEvent(TypeVoteCommitted, "reg-1", at, map[string]string{"constituency": "North"})
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	require.True(t, w.deadline)
	msg := w.msgs[0]
	require.Equal(t, "reg-1", string(msg.Key))
	require.Equal(t, "vote.committed", string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, evt.ID, decoded.ID)
	require.Equal(t, "North", decoded.Payload["constituency"])

	require.NoError(t, pub.Close())
	require.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	pub := newKafkaPublisher(w, "ballots", time.Second, zap.NewNop())

	err := pub.Publish(context.Background(), NewEvent(TypeVoteCommitted, "reg-1", time.Now(), nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "leader not available")
}

func TestNewKafkaPublisherValidatesConfig(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "ballots"}, nil)
	require.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.Error(t, err)

	pub, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{" localhost:9092 "}, Topic: "ballots"}, nil)
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}
