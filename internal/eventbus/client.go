// Package eventbus fans room events out over Redis Pub/Sub so other
// processes (for example `huddle watch`) can follow a room live.
//
// Delivery is at-most-once. Nothing published here is ever read back into
// a store; the bus is an observation channel, not persistence.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/huddle/pkg/room"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis Pub/Sub operations for room events.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates an event bus client for the instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL, instanceName string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(opts, instanceName)
}

// InstanceName returns the namespace of this client.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishEvent publishes the event JSON on the room channel and on the
// instance-wide channel.
func (c *Client) PublishEvent(ctx context.Context, ev room.RoomEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Publish(ctx, RoomEventsChannel(c.instanceName, ev.RoomID), data)
	pipe.Publish(ctx, InstanceEventsChannel(c.instanceName), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to room events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan room.RoomEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of room events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan room.RoomEvent {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors.
// Malformed messages are reported here and skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to one room's events, or to every room of the
// instance when roomID is empty.
//
// The subscription is confirmed with Redis before Subscribe returns, so an
// event published afterwards is not missed.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*Subscription, error) {
	channel := InstanceEventsChannel(c.instanceName)
	if roomID != "" {
		channel = RoomEventsChannel(c.instanceName, roomID)
	}

	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan room.RoomEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev room.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal room event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
