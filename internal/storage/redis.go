/**
 * Redis record store
 *
 * Each record is a JSON value under its own key, expiring after the retention
 * period. A sorted set scored by upload time indexes the keys for listing
 * and age queries; index entries whose key has expired are pruned lazily.
 */

package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 50

// RedisRecordStore implements RecordStore on Redis
type RedisRecordStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStoreConfig holds Redis record store configuration
type RedisStoreConfig struct {
	URL    string
	Prefix string
	// TTL expires records that were never swept; zero keeps them forever
	TTL time.Duration
}

// NewRedisRecordStore connects to Redis and verifies the connection
func NewRedisRecordStore(cfg RedisStoreConfig) (*RedisRecordStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "doctranslate:"
	}

	return &RedisRecordStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
	}, nil
}

func (s *RedisRecordStore) key(id string) string {
	return s.prefix + "file:" + id
}

func (s *RedisRecordStore) indexKey() string {
	return s.prefix + "files"
}

// Insert stores rec and indexes it by upload time
func (s *RedisRecordStore) Insert(ctx context.Context, rec *FileRecord) error {
	if rec == nil || rec.FileID == "" {
		return fmt.Errorf("file ID is required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.FileID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if !ok {
		return fmt.Errorf("record already exists: %s", rec.FileID)
	}

	if err := s.client.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(rec.UploadedAt.UnixNano()),
		Member: rec.FileID,
	}).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	return nil
}

// Get returns the record for id
func (s *RedisRecordStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(data)
}

// Update runs fn inside a WATCH/MULTI transaction, retrying on conflicts
func (s *RedisRecordStore) Update(ctx context.Context, id string, fn func(*FileRecord) error) (*FileRecord, error) {
	key := s.key(id)
	var updated *FileRecord

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if stderrors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		rec.FileID = id

		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}

		updated = rec
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("update of %s kept conflicting after %d attempts", id, maxUpdateRetries)
}

// Delete removes the record and its index entry
func (s *RedisRecordStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns matching records in upload order
func (s *RedisRecordStore) List(ctx context.Context, filter Filter) ([]*FileRecord, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}

	recs, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*FileRecord, 0, len(recs))
	for _, rec := range recs {
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// OlderThan returns records uploaded before cutoff
func (s *RedisRecordStore) OlderThan(ctx context.Context, cutoff time.Time) ([]*FileRecord, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	return s.load(ctx, ids)
}

// load fetches records for ids, dropping index entries whose key expired
func (s *RedisRecordStore) load(ctx context.Context, ids []string) ([]*FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	var stale []interface{}
	recs := make([]*FileRecord, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, s.indexKey(), stale...).Err()
	}

	return recs, nil
}

// Ping checks Redis connectivity
func (s *RedisRecordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisRecordStore) Close() error {
	return s.client.Close()
}

func decodeRecord(data []byte) (*FileRecord, error) {
	var rec FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}
