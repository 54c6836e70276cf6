package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	goredis "github.com/go-redis/redis/v8"

	"sma-vol-breakdown/internal/model"
)

const (
	// StatusKey stores the JSON-encoded last RunStatus.
	StatusKey = keyPrefix + "last_run"
	// EventsChannel carries JSON-encoded RunEvents.
	EventsChannel = keyPrefix + "events"
)

// StatusStore keeps the latest run status and relays run events to pub/sub.
type StatusStore struct {
	client *goredis.Client
}

// NewStatusStore wraps a connected client.
func NewStatusStore(client *goredis.Client) *StatusStore {
	return &StatusStore{client: client}
}

// Save overwrites the stored status.
func (s *StatusStore) Save(ctx context.Context, st model.RunStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, StatusKey, b, 0).Err(); err != nil {
		return fmt.Errorf("redis save status: %w", err)
	}
	return nil
}

// Load returns the stored status; ok is false when none was saved yet.
func (s *StatusStore) Load(ctx context.Context) (st model.RunStatus, ok bool, err error) {
	b, err := s.client.Get(ctx, StatusKey).Bytes()
	if err == goredis.Nil {
		return model.RunStatus{}, false, nil
	}
	if err != nil {
		return model.RunStatus{}, false, fmt.Errorf("redis load status: %w", err)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return model.RunStatus{}, false, fmt.Errorf("redis decode status: %w", err)
	}
	return st, true, nil
}

// Relay publishes every event from events to EventsChannel.
// Blocks until ctx is cancelled or events is closed.
func (s *StatusStore) Relay(ctx context.Context, events <-chan model.RunEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.client.Publish(ctx, EventsChannel, ev.JSON()).Err(); err != nil {
				log.Printf("[redis] publish %s event: %v", ev.Type, err)
			}
		}
	}
}
