package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
)

type recordingProc struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (p *recordingProc) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ticks = append(p.ticks, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ticks)
}

type noopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *noopMetrics) RecordTickEmitted(string, string) {}
func (m *noopMetrics) RecordAnomaly(string)             {}
func (m *noopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}
func (m *noopMetrics) RecordLastPrice(string, float64) {}
func (m *noopMetrics) RecordLatency(string, float64)   {}
func (m *noopMetrics) SetActiveFeeds(int)              {}

func (m *noopMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validTick(symbol string, ts time.Time) *models.Tick {
	return &models.Tick{Symbol: symbol, Timestamp: ts, Price: 100, Volume: 1, Source: "simulated"}
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &recordingProc{}
	m := &noopMetrics{}
	p := NewRealtimePipeline(proc, m)

	cases := []*models.Tick{
		nil,
		{Timestamp: time.Now(), Price: 100},                           // no symbol
		{Symbol: "BTCUSDT", Price: 100},                               // no timestamp
		{Symbol: "BTCUSDT", Timestamp: time.Now(), Price: 0},          // zero price
		{Symbol: "BTCUSDT", Timestamp: time.Now(), Price: -1},         // negative price
		{Symbol: "BTCUSDT", Timestamp: time.Now(), Price: 1, Volume: -1}, // negative volume
	}
	for _, tc := range cases {
		assert.Error(t, p.Process(context.Background(), tc))
	}
	assert.Zero(t, proc.count())
	assert.Equal(t, len(cases), m.errCount("pipeline_validate"))
}

func TestPipelineForwardsValidTick(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, &noopMetrics{})

	require.NoError(t, p.Process(context.Background(), validTick("BTCUSDT", time.Now())))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	m := &noopMetrics{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))

	now := time.Now()
	require.NoError(t, p.Process(context.Background(), validTick("BTCUSDT", now)))
	// immediate second tick for the same symbol is dropped, not errored
	require.NoError(t, p.Process(context.Background(), validTick("BTCUSDT", now)))
	// a different symbol has its own budget
	require.NoError(t, p.Process(context.Background(), validTick("ETHUSDT", now)))

	assert.Equal(t, 2, proc.count())
	assert.Equal(t, 1, m.errCount("pipeline_throttle"))
}

func TestPipelineTransformHook(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, &noopMetrics{}, WithTransform(func(t *models.Tick) *models.Tick {
		out := *t
		out.Source = "transformed"
		return &out
	}))

	require.NoError(t, p.Process(context.Background(), validTick("BTCUSDT", time.Now())))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, "transformed", proc.ticks[0].Source)
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: errors.New("sink down")}
	m := &noopMetrics{}
	p := NewRealtimePipeline(proc, m, WithBufferSize(4))

	err := p.Process(context.Background(), validTick("BTCUSDT", time.Now()))
	require.Error(t, err)
	assert.Equal(t, 1, m.errCount("pipeline_process"))
	assert.Equal(t, 1, len(p.bufCh))

	// once downstream recovers, the flush loop drains the buffer
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, proc.count())
}
