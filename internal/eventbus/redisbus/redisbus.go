// Package redisbus is an additive cross-process forwarder for
// internal/eventbus: a single in-memory Bus only fans events out to
// subscribers attached to the same process, so a multi-instance deployment
// needs something publishing across processes too. Grounded on
// internal/realtime/bus/redis_bus.go's pub/sub shape (publish raw JSON on a
// channel, subscribe and decode back into the same message type).
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/logger"
)

const defaultChannel = "coursecraft:events"

// Forwarder publishes domain.Event values to a Redis channel and, when
// started, relays any it receives back into a local *eventbus.Bus so
// subscribers on this process see events emitted by any instance.
type Forwarder struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// New dials addr and verifies connectivity with a bounded ping. channel
// defaults to "coursecraft:events" when empty.
func New(log *logger.Logger, addr, channel string) (*Forwarder, error) {
	if addr == "" {
		return nil, fmt.Errorf("redisbus: REDIS_ADDR required")
	}
	if channel == "" {
		channel = defaultChannel
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisbus: ping: %w", err)
	}

	return &Forwarder{
		log:     log.With("component", "eventbus.redisbus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Publish broadcasts event to every other process subscribed to the
// channel. It blocks the caller for one Redis round trip.
func (f *Forwarder) Publish(ctx context.Context, event domain.Event) error {
	if f == nil || f.rdb == nil {
		return fmt.Errorf("redisbus: not initialized")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

// StartForwarder subscribes to the channel and republishes every decoded
// event onto local. It returns once the subscription is confirmed; the
// relay loop keeps running in its own goroutine until ctx is done.
func (f *Forwarder) StartForwarder(ctx context.Context, local *eventbus.Bus) error {
	if f == nil || f.rdb == nil {
		return fmt.Errorf("redisbus: not initialized")
	}
	sub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redisbus: subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					f.log.Warn("bad redisbus event payload", "error", err)
					continue
				}
				local.Publish(event)
			}
		}
	}()

	return nil
}

func (f *Forwarder) Close() error {
	if f == nil || f.rdb == nil {
		return nil
	}
	return f.rdb.Close()
}
