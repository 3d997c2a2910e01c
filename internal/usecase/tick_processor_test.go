package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

func TestProcessRoutesToKafka(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStorage{}
	m := newFakeMetrics()
	p := NewTickProcessor(pub, store, m, "kafka")

	require.NoError(t, p.Process(context.Background(), testTick("BTCUSDT", 45000)))

	assert.Len(t, pub.single, 1)
	assert.Empty(t, store.stored)
	assert.Equal(t, 1, m.emittedCount("kafka/BTCUSDT"))
}

func TestProcessRoutesToClickHouse(t *testing.T) {
	pub := &fakePublisher{}
	store := &fakeStorage{}
	m := newFakeMetrics()
	p := NewTickProcessor(pub, store, m, "clickhouse")

	require.NoError(t, p.Process(context.Background(), testTick("ETHUSDT", 2500)))

	assert.Empty(t, pub.single)
	assert.Len(t, store.stored, 1)
	assert.Equal(t, 1, m.emittedCount("clickhouse/ETHUSDT"))
}

func TestProcessNilTick(t *testing.T) {
	p := NewTickProcessor(&fakePublisher{}, &fakeStorage{}, newFakeMetrics(), "kafka")
	assert.Error(t, p.Process(context.Background(), nil))
}

func TestProcessUnknownBackend(t *testing.T) {
	m := newFakeMetrics()
	p := NewTickProcessor(&fakePublisher{}, &fakeStorage{}, m, "postgres")
	err := p.Process(context.Background(), testTick("BTCUSDT", 45000))
	require.Error(t, err)
	assert.Equal(t, 1, m.errors["process"])
}

func TestProcessDownstreamError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := newFakeMetrics()
	p := NewTickProcessor(pub, &fakeStorage{}, m, "kafka")

	err := p.Process(context.Background(), testTick("BTCUSDT", 45000))
	require.Error(t, err)
	assert.Equal(t, 1, m.errors["process"])
	assert.Zero(t, m.emittedCount("kafka/BTCUSDT"))
}

func TestProcessBatch(t *testing.T) {
	pub := &fakePublisher{}
	m := newFakeMetrics()
	p := NewTickProcessor(pub, &fakeStorage{}, m, "kafka")

	batch := []*models.Tick{testTick("BTCUSDT", 45000), testTick("BTCUSDT", 45010), testTick("ETHUSDT", 2500)}
	require.NoError(t, p.ProcessBatch(context.Background(), batch))

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 3)
	assert.Equal(t, 2, m.emittedCount("kafka/BTCUSDT"))
	assert.Equal(t, 1, m.emittedCount("kafka/ETHUSDT"))

	// empty batch is a no-op
	require.NoError(t, p.ProcessBatch(context.Background(), nil))
	assert.Len(t, pub.batches, 1)
}

func TestCloseClosesResources(t *testing.T) {
	pub := &fakePublisher{}
	p := NewTickProcessor(pub, &fakeStorage{}, newFakeMetrics(), "kafka")
	p.Close()
	assert.True(t, pub.closed)
}
