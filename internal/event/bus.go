package event

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lifecycle and ingestion event types published by the core.
const (
	TypeSessionStarted = "session.started"
	TypeSessionPaused  = "session.paused"
	TypeSessionResumed = "session.resumed"
	TypeSessionEnded   = "session.ended"
	TypeAttendeeAdded  = "attendee.added"
)

// Message is one state-change notification.
type Message struct {
	Type string
	Body []byte
}

// Bus fans state-change notifications out to presentation subscribers.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a channel-backed bus for single-process dev setups.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory bus.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (b *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case b.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for subscribers.
func (b *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-b.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisBus implements the bus over a Redis list so the presentation
// worker can run as a separate process.
type RedisBus struct {
	client *redis.Client
	key    string
}

// NewRedisBus builds a bus using LPUSH/BRPOP semantics.
func NewRedisBus(client *redis.Client, key string) *RedisBus {
	if key == "" {
		key = "attendlive:events"
	}
	return &RedisBus{client: client, key: key}
}

// Publish enqueues a message.
func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	return b.client.LPush(ctx, b.key, encode(msg)).Err()
}

// Consume streams messages using BRPOP.
func (b *RedisBus) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := b.client.BRPop(ctx, 5*time.Second, b.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				select {
				case out <- decode(res[1]):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// encode stores messages as Type|Body; the type never contains '|'.
func encode(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func decode(s string) Message {
	if i := strings.IndexByte(s, '|'); i >= 0 {
		return Message{Type: s[:i], Body: []byte(s[i+1:])}
	}
	return Message{Body: []byte(s)}
}
