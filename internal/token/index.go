package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Index is a redis-backed token→visit lookup used by the gate so a scan
// does not need a table walk. Entries expire with the pass; the database
// remains authoritative on a miss.
type Index struct {
	redis *redis.Client
}

func NewIndex(client *redis.Client) *Index {
	return &Index{redis: client}
}

func (x *Index) Save(ctx context.Context, tokenString, visitID string, expiresAt time.Time) error {
	if x.redis == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return x.redis.Set(ctx, indexKey(tokenString), visitID, ttl).Err()
}

func (x *Index) Lookup(ctx context.Context, tokenString string) (string, bool, error) {
	if x.redis == nil {
		return "", false, errors.New("redis_not_configured")
	}
	value, err := x.redis.Get(ctx, indexKey(tokenString)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (x *Index) Drop(ctx context.Context, tokenString string) error {
	if x.redis == nil {
		return nil
	}
	return x.redis.Del(ctx, indexKey(tokenString)).Err()
}

func indexKey(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return fmt.Sprintf("gatepass:%s", hex.EncodeToString(sum[:]))
}
