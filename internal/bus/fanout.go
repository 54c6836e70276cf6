package bus

import (
	"log"
	"sync"

	"sma-vol-breakdown/internal/model"
)

// FanOut broadcasts pipeline run events to N subscriber channels.
// If a subscriber's channel is full the event is dropped for that subscriber,
// so a slow websocket client can never stall a backtest.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.RunEvent
	bufSize int
	closed  bool

	// OnDrop is called when an event is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel. Subscribing after
// Close returns an already-closed channel.
func (f *FanOut) Subscribe() <-chan model.RunEvent {
	ch := make(chan model.RunEvent, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.outputs = append(f.outputs, ch)
	return ch
}

// Publish delivers ev to every subscriber without blocking. It satisfies model.EventSink.
func (f *FanOut) Publish(ev model.RunEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for i, ch := range f.outputs {
		select {
		case ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[bus] output channel %d full, dropping %s event for run %s", i, ev.Type, ev.RunID)
			}
		}
	}
}

// Close closes every subscriber channel. Safe to call more than once.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.outputs {
		close(ch)
	}
}
