package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Feed is a live change-feed over Redis pub/sub for one owner.
// Delivery is at-most-once: events published while disconnected are lost.
type Feed struct {
	pubsub  *redis.PubSub
	ownerID string
	events  chan domain.Event
	stop    chan struct{}
	once    sync.Once
}

// Subscribe opens the change-feed of ownerID. The subscription is
// confirmed by Redis before Subscribe returns.
func (s *BookmarkStore) Subscribe(ctx context.Context, ownerID string) (domain.ChangeFeed, error) {
	pubsub := s.client.Subscribe(ctx, FeedChannel(ownerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	f := &Feed{
		pubsub:  pubsub,
		ownerID: ownerID,
		events:  make(chan domain.Event, 64),
		stop:    make(chan struct{}),
	}
	go f.forward()
	return f, nil
}

// Events returns the event stream. It is closed after Unsubscribe.
func (f *Feed) Events() <-chan domain.Event {
	return f.events
}

// Unsubscribe closes the subscription. Safe to call more than once.
func (f *Feed) Unsubscribe() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		err = f.pubsub.Close()
	})
	return err
}

func (f *Feed) forward() {
	defer close(f.events)
	messages := f.pubsub.Channel()

	for {
		select {
		case <-f.stop:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				continue
			}
			if ev.Record.OwnerID != "" && ev.Record.OwnerID != f.ownerID {
				continue
			}
			select {
			case f.events <- ev:
			case <-f.stop:
				return
			}
		}
	}
}
