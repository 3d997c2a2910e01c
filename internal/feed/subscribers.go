package feed

import (
	"sync"

	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/models"
	"github.com/Noderrxyz/Old-Trading-Bot-sub006/internal/domain/repository"
)

// handlerSet is an ordered registry of callbacks keyed by registration id.
// Add returns a disposer; disposal is idempotent. Iteration preserves
// registration order.
type handlerSet[H any] struct {
	mu     sync.Mutex
	nextID int
	order  []int
	items  map[int]H
}

func newHandlerSet[H any]() *handlerSet[H] {
	return &handlerSet[H]{items: make(map[int]H)}
}

func (s *handlerSet[H]) add(h H) repository.Unsubscribe {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.order = append(s.order, id)
	s.items[id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.items, id)
			s.mu.Unlock()
		})
	}
}

// snapshot returns registered handlers in order, so callbacks run outside
// the registry lock.
func (s *handlerSet[H]) snapshot() []H {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]H, 0, len(s.items))
	for _, id := range s.order {
		if h, ok := s.items[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

func (s *handlerSet[H]) clear() {
	s.mu.Lock()
	s.order = nil
	s.items = make(map[int]H)
	s.mu.Unlock()
}

// subscriptions groups the four event channels a feed publishes on.
type subscriptions struct {
	ticks     *handlerSet[repository.TickHandler]
	candles   *handlerSet[repository.CandleHandler]
	books     *handlerSet[repository.BookHandler]
	anomalies *handlerSet[repository.AnomalyHandler]
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		ticks:     newHandlerSet[repository.TickHandler](),
		candles:   newHandlerSet[repository.CandleHandler](),
		books:     newHandlerSet[repository.BookHandler](),
		anomalies: newHandlerSet[repository.AnomalyHandler](),
	}
}

func (s *subscriptions) clear() {
	s.ticks.clear()
	s.candles.clear()
	s.books.clear()
	s.anomalies.clear()
}

// publishTick runs tick handlers synchronously in registration order. The
// first handler error aborts the fan-out and is returned to the loop.
func (s *subscriptions) publishTick(t models.Tick) error {
	for _, h := range s.ticks.snapshot() {
		if err := h(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *subscriptions) publishCandle(c models.Candle) error {
	for _, h := range s.candles.snapshot() {
		if err := h(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *subscriptions) publishBook(b models.OrderBookSnapshot) error {
	for _, h := range s.books.snapshot() {
		if err := h(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *subscriptions) publishAnomaly(a models.MarketAnomaly) error {
	for _, h := range s.anomalies.snapshot() {
		if err := h(a); err != nil {
			return err
		}
	}
	return nil
}
