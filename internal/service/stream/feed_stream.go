package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/pkg/logger"
)

const streamBuffer = 4096

// FeedStream adapts a DataFeed's synchronous tick subscription to the
// channel-based MarketStream contract the collector consumes. The feed's
// lifecycle stays with its factory; Close only detaches the subscription.
type FeedStream struct {
	feed repository.DataFeed
	log  *logger.Logger

	mu        sync.Mutex
	connected bool
	off       repository.Unsubscribe
	tickCh    chan *models.Tick
	errCh     chan error
}

func NewFeedStream(feed repository.DataFeed, log *logger.Logger) *FeedStream {
	return &FeedStream{
		feed:   feed,
		log:    log,
		tickCh: make(chan *models.Tick, streamBuffer),
		errCh:  make(chan error, 8),
	}
}

// Connect starts the underlying feed's emission loop.
func (s *FeedStream) Connect(ctx context.Context) error {
	if err := s.feed.Start(ctx); err != nil {
		return fmt.Errorf("start feed: %w", err)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Subscribe attaches the tick handler. A full channel drops the tick
// rather than stalling the emission loop.
func (s *FeedStream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return fmt.Errorf("stream not connected")
	}
	if s.off != nil {
		return nil
	}
	s.off = s.feed.OnTick(func(t models.Tick) error {
		tick := t
		select {
		case s.tickCh <- &tick:
		default:
			s.log.Warn("stream buffer full, dropping tick", logger.String("symbol", t.Symbol))
		}
		return nil
	})
	return nil
}

func (s *FeedStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	return s.tickCh, s.errCh
}

// Reconnect re-arms the subscription and restarts the feed if its loop
// has stopped.
func (s *FeedStream) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.off != nil {
		s.off()
		s.off = nil
	}
	s.connected = false
	s.mu.Unlock()

	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close detaches from the feed without stopping it.
func (s *FeedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.off != nil {
		s.off()
		s.off = nil
	}
	s.connected = false
	return nil
}

func (s *FeedStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

var _ repository.MarketStream = (*FeedStream)(nil)
