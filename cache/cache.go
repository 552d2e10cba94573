// Package cache keeps per-event expense summaries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/phillip/isaithondar-go/models"
)

// ErrCorrupt reports a cached value that could not be decoded. The entry's
// Generation is still valid, so callers may overwrite it.
var ErrCorrupt = errors.New("corrupt cached summary")

// Entry is one cache read. Generation must be passed back to Set so a
// summary computed before an Invalidate is never stored after it.
type Entry struct {
	Rows       []models.TypeSummary
	Hit        bool
	Generation int64
}

// SummaryCache stores the per-type breakdown of one event's expenses.
type SummaryCache interface {
	Get(ctx context.Context, eventID primitive.ObjectID) (Entry, error)
	// Set stores rows only while the event is still at generation. It reports
	// whether the rows were written.
	Set(ctx context.Context, eventID primitive.ObjectID, generation int64, rows []models.TypeSummary) (bool, error)
	// Invalidate bumps the generation and drops the cached rows.
	Invalidate(ctx context.Context, eventID primitive.ObjectID) error
}

func summaryKey(eventID primitive.ObjectID) string {
	return "summary:event:" + eventID.Hex()
}

func generationKey(eventID primitive.ObjectID) string {
	return summaryKey(eventID) + ":gen"
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfGeneration = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type RedisSummaryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSummaryCache(client redis.Cmdable, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (c *RedisSummaryCache) Get(ctx context.Context, eventID primitive.ObjectID) (Entry, error) {
	vals, err := c.client.MGet(ctx, summaryKey(eventID), generationKey(eventID)).Result()
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if gen, ok := vals[1].(string); ok {
		if e.Generation, err = strconv.ParseInt(gen, 10, 64); err != nil {
			return Entry{}, fmt.Errorf("decode summary generation: %w", err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return e, nil
	}
	if err := json.Unmarshal([]byte(raw), &e.Rows); err != nil {
		return Entry{Generation: e.Generation}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	e.Hit = true
	return e, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, eventID primitive.ObjectID, generation int64, rows []models.TypeSummary) (bool, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return false, err
	}
	keys := []string{summaryKey(eventID), generationKey(eventID)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys,
		strconv.FormatInt(generation, 10), string(data), c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, eventID primitive.ObjectID) error {
	if err := c.client.Incr(ctx, generationKey(eventID)).Err(); err != nil {
		return err
	}
	return c.client.Del(ctx, summaryKey(eventID)).Err()
}

// Nop never hits; it is used when REDIS_URL is not configured.
type Nop struct{}

func (Nop) Get(context.Context, primitive.ObjectID) (Entry, error) { return Entry{}, nil }

func (Nop) Set(context.Context, primitive.ObjectID, int64, []models.TypeSummary) (bool, error) {
	return false, nil
}

func (Nop) Invalidate(context.Context, primitive.ObjectID) error { return nil }
