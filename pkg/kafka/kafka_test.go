package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	fetchErrs []error
	committed []kafka.Message
	closed    bool
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestConsumerCommitsHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		msgs: []kafka.Message{
			{Key: []byte("1"), Value: []byte("ok"), Offset: 1},
			{Key: []byte("2"), Value: []byte("fail"), Offset: 2},
			{Key: []byte("3"), Value: []byte("ok"), Offset: 3},
		},
		fetchErrs: []error{errors.New("transient broker error")},
		cancel:    cancel,
	}
	var keys []string
	handler := func(_ context.Context, key, value []byte) error {
		keys = append(keys, string(key))
		if string(value) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	}

	c := newConsumer(reader, "document-ingest", handler)
	c.wait = func(context.Context, time.Duration) bool { return true }
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, []string{"1", "2", "3"}, keys)
	require.Len(t, reader.committed, 2)
	assert.Equal(t, int64(1), reader.committed[0].Offset)
	assert.Equal(t, int64(3), reader.committed[1].Offset)
	assert.True(t, reader.closed)
}

func TestConsumerBacksOffOnFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := errors.New("broker unavailable")
	reader := &fakeReader{
		fetchErrs: []error{broker, broker, broker, broker, broker},
		cancel:    cancel,
	}
	c := newConsumer(reader, "document-ingest", func(context.Context, []byte, []byte) error { return nil })
	c.minBackoff = 10 * time.Millisecond
	c.maxBackoff = 50 * time.Millisecond
	var waits []time.Duration
	c.wait = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}, waits)
	assert.True(t, reader.closed)
}

func TestConsumerBackoffResetsAfterSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &errThenMsgReader{
		steps:  []error{errors.New("a"), errors.New("b"), nil, errors.New("c")},
		cancel: cancel,
	}
	c := newConsumer(reader, "document-ingest", func(context.Context, []byte, []byte) error { return nil })
	c.minBackoff = time.Millisecond
	c.maxBackoff = time.Second
	var waits []time.Duration
	c.wait = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, time.Millisecond}, waits)
}

func TestConsumerStopsWhileBackingOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{fetchErrs: []error{errors.New("down")}, cancel: cancel}
	c := newConsumer(reader, "document-ingest", func(context.Context, []byte, []byte) error { return nil })
	c.minBackoff = time.Hour
	c.wait = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop while backing off")
	}
	assert.True(t, reader.closed)
}

func TestSleepCtxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}

// Two partitions interleaved in fetch order. Per-partition offset order, and
// so per-key order, must reach the handler unchanged.
func TestConsumerPreservesFetchOrderPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		msgs: []kafka.Message{
			{Partition: 0, Offset: 0, Key: []byte("1"), Value: []byte("v1")},
			{Partition: 1, Offset: 0, Key: []byte("2"), Value: []byte("v1")},
			{Partition: 0, Offset: 1, Key: []byte("1"), Value: []byte("v2")},
			{Partition: 1, Offset: 1, Key: []byte("2"), Value: []byte("v2")},
			{Partition: 0, Offset: 2, Key: []byte("1"), Value: []byte("v3")},
		},
		cancel: cancel,
	}
	perKey := map[string][]string{}
	var seen []string
	handler := func(_ context.Context, key, value []byte) error {
		perKey[string(key)] = append(perKey[string(key)], string(value))
		seen = append(seen, string(key)+":"+string(value))
		return nil
	}

	c := newConsumer(reader, "document-ingest", handler)
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, []string{"1:v1", "2:v1", "1:v2", "2:v2", "1:v3"}, seen)
	assert.Equal(t, []string{"v1", "v2", "v3"}, perKey["1"])
	assert.Equal(t, []string{"v1", "v2"}, perKey["2"])
	var committed []string
	for _, m := range reader.committed {
		committed = append(committed, fmt.Sprintf("%d/%d", m.Partition, m.Offset))
	}
	assert.Equal(t, []string{"0/0", "1/0", "0/1", "1/1", "0/2"}, committed)
}

func TestReplicaGroupID(t *testing.T) {
	assert.Equal(t, "textsearch-indexer-host-a", ReplicaGroupID("textsearch-indexer", "host-a"))
	assert.Equal(t, "textsearch-indexer", ReplicaGroupID("textsearch-indexer", ""))
	assert.NotEqual(t,
		ReplicaGroupID("textsearch-indexer", "host-a"),
		ReplicaGroupID("textsearch-indexer", "host-b"))
}

// errThenMsgReader returns an error for each non-nil step and an empty
// message for each nil step, cancelling once the steps run out.
type errThenMsgReader struct {
	steps  []error
	cancel context.CancelFunc
	closed bool
}

func (r *errThenMsgReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.steps) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	err := r.steps[0]
	r.steps = r.steps[1:]
	return kafka.Message{}, err
}

func (r *errThenMsgReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }

func (r *errThenMsgReader) Close() error {
	r.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "document-ingest")

	err := p.Publish(context.Background(), Event{
		Key:   "7",
		Value: map[string]any{"document_id": 7},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "7", string(w.written[0].Key))
	assert.JSONEq(t, `{"document_id":7}`, string(w.written[0].Value))
}

func TestProducerPublishErrors(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("no leader")}, "document-ingest")
	err := p.Publish(context.Background(), Event{Key: "1", Value: "x"})
	assert.ErrorContains(t, err, "publishing to document-ingest")

	p = newProducer(&fakeWriter{}, "document-ingest")
	err = p.Publish(context.Background(), Event{Key: "1", Value: make(chan int)})
	assert.ErrorContains(t, err, "marshaling event value")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		ID int `json:"id"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"id":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, got.ID)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}
