// internal/service/event_bus.go
package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"haptic-service/internal/model"
)

// EventBus fans loop events out to subscribers. Slow subscribers miss events.
type EventBus struct {
	subscribers map[uuid.UUID]chan *model.LoopEvent
	events      chan *model.LoopEvent
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[uuid.UUID]chan *model.LoopEvent),
		events:      make(chan *model.LoopEvent, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start distributes events until Close
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Close stops distribution and closes every subscription
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		for id, ch := range eb.subscribers {
			close(ch)
			delete(eb.subscribers, id)
		}
		eb.mutex.Unlock()
	})
}

// Publish queues an event without blocking
func (eb *EventBus) Publish(event *model.LoopEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe returns a subscription channel and its cancel function
func (eb *EventBus) Subscribe() (<-chan *model.LoopEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := uuid.New()
	subscriber := make(chan *model.LoopEvent, 32)
	eb.subscribers[id] = subscriber

	return subscriber, func() {
		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		if ch, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
		}
	}
}

// distributeEvent delivers an event to every subscriber
func (eb *EventBus) distributeEvent(event *model.LoopEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
