package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/newtcli/pkg/util"
)

// DefaultRedisKey is the list that holds audit events.
const DefaultRedisKey = "NEWTCLI_AUDIT"

// RedisLogger keeps audit events in a Redis list, newest at the head, so
// several operators' workstations can share one trail.
type RedisLogger struct {
	client *redis.Client
	ctx    context.Context
	key    string
	// maxLen caps the list; 0 keeps every event.
	maxLen int64
}

// RedisConfig configures a RedisLogger.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	MaxLen   int64
}

// NewRedisLogger connects to cfg.Addr and verifies the connection.
func NewRedisLogger(cfg RedisConfig) (*RedisLogger, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	l := &RedisLogger{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ctx:    context.Background(),
		key:    cfg.Key,
		maxLen: cfg.MaxLen,
	}
	if err := l.client.Ping(l.ctx).Err(); err != nil {
		l.client.Close()
		return nil, fmt.Errorf("connecting to audit redis %s: %w", cfg.Addr, err)
	}
	return l, nil
}

// Log pushes event onto the list and trims it to maxLen.
func (l *RedisLogger) Log(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	_, err = l.client.TxPipelined(l.ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(l.ctx, l.key, data)
		if l.maxLen > 0 {
			pipe.LTrim(l.ctx, l.key, 0, l.maxLen-1)
		}
		return nil
	})
	return err
}

// Query returns the matching events oldest first, like FileLogger.
func (l *RedisLogger) Query(filter Filter) ([]*Event, error) {
	raw, err := l.client.LRange(l.ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading audit list %s: %w", l.key, err)
	}

	var events []*Event
	for i := len(raw) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(raw[i]), &event); err != nil {
			util.Warnf("audit: skipping malformed entry %d of %s: %v", i, l.key, err)
			continue
		}
		if filter.Matches(&event) {
			events = append(events, &event)
		}
	}
	return filter.page(events), nil
}

// Close closes the Redis client.
func (l *RedisLogger) Close() error {
	return l.client.Close()
}
