package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupPrefix = "crawler:dedup:url:"

// Deduplicator remembers detail URLs across runs so a page is not fetched twice
// inside the TTL.
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// Seen marks url and reports whether it was already marked.
func (d *Deduplicator) Seen(ctx context.Context, url string) (bool, error) {
	if d == nil || d.rdb == nil || url == "" {
		return false, nil
	}
	ok, err := d.rdb.SetNX(ctx, dedupPrefix+hashURL(url), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Forget removes url so the next Seen call reports it as new. Used when a
// detail fetch fails after the URL was marked.
func (d *Deduplicator) Forget(ctx context.Context, url string) error {
	if d == nil || d.rdb == nil || url == "" {
		return nil
	}
	if err := d.rdb.Del(ctx, dedupPrefix+hashURL(url)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
