package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/rs/zerolog"
)

const redisPrefix = "cats:resolver:"

// redisCatalog keeps the fields catalog.Catalog hides from JSON.
type redisCatalog struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code"`
	TitleID      int64        `json:"title_id"`
	TitleCode    string       `json:"title_code"`
	Type         catalog.Type `json:"ctype"`
	Version      int          `json:"version"`
	URL          string       `json:"url"`
	ActivatedAt  *time.Time   `json:"activated_at"`
	TerminatedAt *time.Time   `json:"terminated_at"`
}

type redisSnapshot struct {
	TitleCode string         `json:"title_code"`
	Scope     Scope          `json:"scope"`
	ETag      string         `json:"etag"`
	ExpiresAt time.Time      `json:"expires_at"`
	Catalogs  []redisCatalog `json:"catalogs"`
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	rs := redisSnapshot{TitleCode: s.TitleCode, Scope: s.Scope, ETag: s.ETag, ExpiresAt: s.ExpiresAt}
	for _, c := range s.Catalogs {
		rs.Catalogs = append(rs.Catalogs, redisCatalog(c))
	}
	return json.Marshal(rs)
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var rs redisSnapshot
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	s := &Snapshot{TitleCode: rs.TitleCode, Scope: rs.Scope, ETag: rs.ETag, ExpiresAt: rs.ExpiresAt, Catalogs: []catalog.Catalog{}}
	for _, c := range rs.Catalogs {
		s.Catalogs = append(s.Catalogs, catalog.Catalog(c))
	}
	return s, nil
}

// RedisCache shares snapshots between nodes. Redis failures degrade to a
// cache miss.
type RedisCache struct {
	rdb *redis.Client
	log zerolog.Logger
	now func() time.Time
}

// NewRedisClient connects to redis and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisCache creates a cache over an existing client.
func NewRedisCache(rdb *redis.Client, log zerolog.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, log: log.With().Str("component", "resolver_redis").Logger(), now: time.Now}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Snapshot, bool) {
	data, err := c.rdb.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		}
		return nil, false
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable snapshot")
		return nil, false
	}
	if !snap.Fresh(c.now()) {
		return nil, false
	}
	return snap, true
}

func (c *RedisCache) Set(ctx context.Context, key string, s *Snapshot, ttl time.Duration) {
	data, err := encodeSnapshot(s)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode snapshot")
		return
	}
	if err := c.rdb.Set(ctx, redisPrefix+key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, titleCode string) {
	keys := []string{redisPrefix + titleKey(titleCode, ScopeAll)}
	for _, t := range catalog.Types {
		keys = append(keys, redisPrefix+titleKey(titleCode, ScopeOf(t)), redisPrefix+allKey(t))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Str("title_code", titleCode).Msg("Redis invalidation failed")
	}
}
