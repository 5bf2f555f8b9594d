package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/klyr/seclang/internal/logging"
)

// RedisStore keeps every record under <prefix>:ruleset:<id>, points
// <prefix>:current at the newest one and announces it on <prefix>:updates.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, password string, db int, prefix string) *RedisStore {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("connecting to redis")
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreWithClient(client, prefix)
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "seclang"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recordKey(id string) string {
	return s.prefix + ":ruleset:" + id
}

func (s *RedisStore) currentKey() string {
	return s.prefix + ":current"
}

// Channel is where new record ids are announced.
func (s *RedisStore) Channel() string {
	return s.prefix + ":updates"
}

func (s *RedisStore) Publish(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
		pipe.Set(ctx, s.currentKey(), rec.ID, 0)
		return nil
	})
	if err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", rec.ID).Msg("failed to store rule set")
		return err
	}

	if err := s.client.Publish(ctx, s.Channel(), rec.ID).Err(); err != nil {
		logging.Logger.Error().Err(err).Str("ruleset", rec.ID).Msg("failed to announce rule set")
		return err
	}
	logging.Logger.Info().Str("ruleset", rec.ID).Int("rules", rec.Rules).Msg("rule set published")
	return nil
}

// Current returns the newest record, or nil when nothing was published.
func (s *RedisStore) Current(ctx context.Context) (*Record, error) {
	id, err := s.client.Get(ctx, s.currentKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// IDs lists the ids of every stored record.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	prefix := s.recordKey("")
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ids = append(ids, key[len(prefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

// Subscribe returns a subscription to record announcements.
func (s *RedisStore) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	pubsub := s.client.Subscribe(ctx, s.Channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}
