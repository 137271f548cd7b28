package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyang/annotation-desk/internal/domain/event"
	porteventbus "github.com/alanyang/annotation-desk/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*EventBus)(nil)

const subscriberBuffer = 64

// EventBus fans events out to in-process subscribers. Each subscriber has
// its own buffered queue drained by a goroutine; a full queue drops the
// event for that subscriber only.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*subscription]struct{})}
}

func (eb *EventBus) Publish(_ context.Context, e event.Event) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for sub := range eb.subs {
		select {
		case sub.queue <- e:
		default:
			slog.Warn("event dropped, subscriber queue full", "type", e.Type, "id", e.ID)
		}
	}
	return nil
}

// Subscribe starts a goroutine that invokes handler for every published
// event until ctx is cancelled or the subscription is released.
func (eb *EventBus) Subscribe(ctx context.Context, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		queue:  make(chan event.Event, subscriberBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	eb.mu.Lock()
	eb.subs[sub] = struct{}{}
	eb.mu.Unlock()

	go func() {
		defer func() {
			eb.mu.Lock()
			delete(eb.subs, sub)
			eb.mu.Unlock()
			close(sub.done)
		}()

		for {
			select {
			case <-subCtx.Done():
				return
			case e := <-sub.queue:
				handler(subCtx, e)
			}
		}
	}()

	return sub, nil
}

type subscription struct {
	queue  chan event.Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}
