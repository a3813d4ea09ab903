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

	"github.com/hamed0406/uptimeprobe/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_ObserveWritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "check-results"}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, p.Observe(context.Background(), domain.CheckResult{
		SiteID: "s1", URL: "https://s1.test", Status: domain.StatusDown, ResponseTimeMS: 2000, ErrorMessage: "timeout", Timestamp: at,
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "s1", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)

	var got domain.CheckResult
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, domain.StatusDown, got.Status)
	assert.Nil(t, got.StatusCode)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unreachable")
	p := &Publisher{writer: &fakeWriter{err: boom}, topic: "t", timeout: time.Second}
	err := p.Observe(context.Background(), domain.CheckResult{SiteID: "s1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "t")
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "results")
	assert.Equal(t, "results", p.Topic())
	assert.NoError(t, p.Close())
}
