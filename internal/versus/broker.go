package versus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Broker fans match views out to live subscribers (websocket clients).
type Broker interface {
	Publish(ctx context.Context, v View) error
	// Subscribe returns a channel of views for one match. The channel is closed after
	// cancel is called or ctx is done.
	Subscribe(ctx context.Context, matchID string) (<-chan View, func(), error)
}

func channelName(matchID string) string {
	return fmt.Sprintf("%s:live:%s", keyPrefix, matchID)
}

// RedisBroker uses Redis pub/sub so updates reach clients connected to any instance.
type RedisBroker struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, log *slog.Logger) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{rdb: rdb, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, v View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelName(v.ID), data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, matchID string) (<-chan View, func(), error) {
	ps := b.rdb.Subscribe(ctx, channelName(matchID))
	// Wait for the subscription confirmation so no publish after this call is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan View, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var v View
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					b.log.Warn("drop malformed live update", "match_id", matchID, "err", err)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// MemoryBroker is the single-process broker.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan View]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[chan View]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, v View) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[v.ID] {
		select {
		case ch <- v:
		default:
			// slow subscriber; it will get the next update
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, matchID string) (<-chan View, func(), error) {
	ch := make(chan View, 16)

	b.mu.Lock()
	if b.subs[matchID] == nil {
		b.subs[matchID] = make(map[chan View]struct{})
	}
	b.subs[matchID][ch] = struct{}{}
	b.mu.Unlock()

	ctx, stop := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			b.mu.Lock()
			delete(b.subs[matchID], ch)
			if len(b.subs[matchID]) == 0 {
				delete(b.subs, matchID)
			}
			close(ch)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

var (
	_ Broker = (*RedisBroker)(nil)
	_ Broker = (*MemoryBroker)(nil)
)
