package ibge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/redis/go-redis/v9"
)

const keyPrefix string = "ecoleta:ibge:"

type cachingClient struct {
	next Client
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCachingClient keeps the responses of next in redis for ttl. The localidades
// data changes very rarely, so cached lists are served without revalidation.
// Cache failures are logged and the request falls through to next.
func NewCachingClient(next Client, rdb redis.Cmdable, ttl time.Duration) Client {
	if rdb == nil {
		return next
	}

	return &cachingClient{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
	}
}

func (c *cachingClient) GetUFs(ctx context.Context) ([]string, error) {
	return c.cached(ctx, keyPrefix+"ufs", c.next.GetUFs)
}

func (c *cachingClient) GetCities(ctx context.Context, uf string) ([]string, error) {
	key := fmt.Sprintf("%scities:%s", keyPrefix, strings.ToUpper(uf))
	return c.cached(ctx, key, func(ctx context.Context) ([]string, error) {
		return c.next.GetCities(ctx, uf)
	})
}

func (c *cachingClient) cached(ctx context.Context, key string, fetch func(context.Context) ([]string, error)) ([]string, error) {
	log := logging.GetLoggerFromContext(ctx).With().Str("key", key).Logger()

	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var values []string
		if err = json.Unmarshal(b, &values); err == nil {
			log.Debug().Msg("cache hit")
			return values, nil
		}
		log.Warn().Err(err).Msg("discarding malformed cache entry")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("cache lookup failed")
	}

	values, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if b, err = json.Marshal(values); err == nil {
		if err = c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("cache store failed")
		}
	}

	return values, nil
}
