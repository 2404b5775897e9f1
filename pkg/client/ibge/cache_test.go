package ibge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/redis/go-redis/v9"
)

func TestThatCachedUFsAreServedWithoutCallingNext(t *testing.T) {
	is := is.New(t)

	next := &countingClient{ufs: []string{"SP", "AM"}}
	rdb := &fakeRedis{data: map[string][]byte{}}
	c := NewCachingClient(next, rdb, time.Hour)

	ufs, err := c.GetUFs(context.Background())
	is.NoErr(err)
	is.Equal(ufs, []string{"SP", "AM"})

	ufs, err = c.GetUFs(context.Background())
	is.NoErr(err)
	is.Equal(ufs, []string{"SP", "AM"})

	is.Equal(next.calls, 1)
	is.Equal(rdb.ttl, time.Hour)
}

func TestThatCitiesAreCachedPerUF(t *testing.T) {
	is := is.New(t)

	next := &countingClient{cities: []string{"Blumenau"}}
	rdb := &fakeRedis{data: map[string][]byte{}}
	c := NewCachingClient(next, rdb, time.Hour)

	_, err := c.GetCities(context.Background(), "sc")
	is.NoErr(err)
	_, err = c.GetCities(context.Background(), "SC")
	is.NoErr(err)
	_, err = c.GetCities(context.Background(), "PR")
	is.NoErr(err)

	is.Equal(next.calls, 2)
	_, ok := rdb.data["ecoleta:ibge:cities:SC"]
	is.True(ok)
}

func TestThatFailuresFromNextAreNotCached(t *testing.T) {
	is := is.New(t)

	next := &countingClient{err: errors.New("boom")}
	rdb := &fakeRedis{data: map[string][]byte{}}
	c := NewCachingClient(next, rdb, time.Hour)

	_, err := c.GetUFs(context.Background())
	is.True(err != nil)
	is.Equal(len(rdb.data), 0)
}

func TestThatUnreachableRedisFallsThroughToNext(t *testing.T) {
	is := is.New(t)

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	next := &countingClient{ufs: []string{"RS"}}
	c := NewCachingClient(next, rdb, time.Hour)

	ufs, err := c.GetUFs(context.Background())
	is.NoErr(err)
	is.Equal(ufs, []string{"RS"})
}

func TestThatNilRedisReturnsNext(t *testing.T) {
	is := is.New(t)

	next := &countingClient{}
	is.Equal(NewCachingClient(next, nil, time.Hour), next)
}

type countingClient struct {
	ufs    []string
	cities []string
	err    error
	calls  int
}

func (c *countingClient) GetUFs(ctx context.Context) ([]string, error) {
	c.calls++
	return c.ufs, c.err
}

func (c *countingClient) GetCities(ctx context.Context, uf string) ([]string, error) {
	c.calls++
	return c.cities, c.err
}

type fakeRedis struct {
	redis.Cmdable
	data map[string][]byte
	ttl  time.Duration
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	b, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(b), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}
