package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	applogger "github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

func testLogger() *applogger.Logger {
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		panic(err)
	}
	return l
}

type fakeMetrics struct {
	mu      sync.Mutex
	emitted map[string]int
	errors  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{emitted: make(map[string]int), errors: make(map[string]int)}
}

func (m *fakeMetrics) RecordTickEmitted(feedType, symbol string) {
	m.mu.Lock()
	m.emitted[feedType+"/"+symbol]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAnomaly(string) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}
func (m *fakeMetrics) SetActiveFeeds(int)              {}

func (m *fakeMetrics) emittedCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitted[key]
}

type fakePublisher struct {
	mu      sync.Mutex
	single  []*models.Tick
	batches [][]*models.Tick
	err     error
	closed  bool
}

func (p *fakePublisher) Publish(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.single = append(p.single, t)
	return nil
}

func (p *fakePublisher) PublishBatch(_ context.Context, ticks []*models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, ticks)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeStorage struct {
	mu     sync.Mutex
	stored []*models.Tick
	err    error
}

func (s *fakeStorage) Init(context.Context) error { return nil }

func (s *fakeStorage) Store(_ context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, t)
	return nil
}

func (s *fakeStorage) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, ticks...)
	return nil
}

func (s *fakeStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Tick, error) {
	return nil, nil
}

func (s *fakeStorage) Health(context.Context) error { return nil }
func (s *fakeStorage) Close() error                 { return nil }

func testTick(symbol string, price float64) *models.Tick {
	return &models.Tick{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Price:     price,
		Volume:    1.5,
		Source:    "simulated",
	}
}
