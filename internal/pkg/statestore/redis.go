package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stateChannel = "folioview:state"

// Redis backs the shared state with a Redis instance, for profiles whose
// windows run on more than one machine. Change notifications travel over
// pub/sub, so every process sees marker changes made by any other.
type Redis struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	watchers map[int]chan Event
	nextID   int
	closed   bool

	sub     *redis.PubSub
	subOnce sync.Once
}

// OpenRedis connects and verifies the backend is reachable.
func OpenRedis(ctx context.Context, addr string, db int, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{
		client:   client,
		logger:   logger,
		watchers: make(map[int]chan Event),
	}, nil
}

// NewRedisFromClient wraps an existing client; used by tests.
func NewRedisFromClient(client *redis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:   client,
		logger:   logger,
		watchers: make(map[int]chan Event),
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return err
	}
	return r.publish(ctx, Event{Key: key, Value: value})
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return r.publish(ctx, Event{Key: key})
}

func (r *Redis) Watch(ctx context.Context) (<-chan Event, error) {
	r.ensureSubscribed()

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	ch := make(chan Event, 16)
	r.watchers[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		if w, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(w)
		}
		r.mu.Unlock()
	}()

	return ch, nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for id, ch := range r.watchers {
		delete(r.watchers, id)
		close(ch)
	}
	sub := r.sub
	r.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	return r.client.Close()
}

func (r *Redis) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, stateChannel, payload).Err()
}

func (r *Redis) ensureSubscribed() {
	r.subOnce.Do(func() {
		r.sub = r.client.Subscribe(context.Background(), stateChannel)
		go func() {
			for msg := range r.sub.Channel() {
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("Malformed state notification", zap.Error(err))
					continue
				}
				r.mu.Lock()
				for _, ch := range r.watchers {
					select {
					case ch <- ev:
					default:
					}
				}
				r.mu.Unlock()
			}
		}()
	})
}
