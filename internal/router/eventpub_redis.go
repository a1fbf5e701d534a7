package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig configures the stream publisher.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream length approximately; 0 means unbounded.
	MaxLen  int64
	Timeout time.Duration
	// QueueSize bounds the events waiting to be written; defaults to 256.
	QueueSize int
}

// RedisPublisher appends events to a Redis stream with XADD so an external
// supervisor can act on them. Writes happen on a background goroutine.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	stream  string
	maxLen  int64
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewRedisPublisher connects and pings the server.
func NewRedisPublisher(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisPublisher(rdb, cfg, log), nil
}

func newRedisPublisher(rdb redis.UniversalClient, cfg RedisConfig, log zerolog.Logger) *RedisPublisher {
	stream := cfg.Stream
	if stream == "" {
		stream = "tierd:events"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	p := &RedisPublisher{
		rdb:     rdb,
		stream:  stream,
		maxLen:  cfg.MaxLen,
		timeout: timeout,
		log:     log,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *RedisPublisher) run() {
	defer close(p.done)
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if _, err := p.add(ctx, e); err != nil {
			p.log.Warn().Err(err).Str("event", e.Name).Msg("redis publish failed")
		}
		cancel()
	}
}

// Publish queues e and returns at once. Events are dropped when the queue is
// full or the publisher is closed.
func (p *RedisPublisher) Publish(e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		eventsDroppedTotal.WithLabelValues("redis").Inc()
		p.log.Warn().Str("event", e.Name).Msg("redis publish queue full, event dropped")
	}
}

func (p *RedisPublisher) add(ctx context.Context, e Event) (string, error) {
	values := map[string]any{
		"name":  e.Name,
		"tier":  e.Tier.String(),
		"model": e.ModelID,
		"at":    e.At.UTC().Format(time.RFC3339Nano),
	}
	if len(e.Fields) > 0 {
		b, err := json.Marshal(e.Fields)
		if err != nil {
			return "", fmt.Errorf("encode fields: %w", err)
		}
		values["fields"] = string(b)
	}
	args := &redis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd failed: %w", err)
	}
	return id, nil
}

// Close writes the queued events, then releases the connection. It is safe
// to call more than once.
func (p *RedisPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
		<-p.done
		p.closeErr = p.rdb.Close()
	})
	return p.closeErr
}
