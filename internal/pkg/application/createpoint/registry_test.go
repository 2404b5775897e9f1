package createpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestThatCreatedViewCanBeRetrieved(t *testing.T) {
	is, r, _ := setupRegistryTest(t)
	ctx := context.Background()

	v := r.Create(ctx)
	is.True(v.ID() != "")

	found, err := r.Get(ctx, v.ID())
	is.NoErr(err)
	is.Equal(found.ID(), v.ID())
	is.Equal(r.Len(), 1)
}

func TestThatUnknownViewIsNotFound(t *testing.T) {
	is, r, _ := setupRegistryTest(t)

	_, err := r.Get(context.Background(), "nosuchview")
	is.True(errors.Is(err, ErrViewNotFound))
}

func TestThatExpiredViewIsNotFound(t *testing.T) {
	is, r, clock := setupRegistryTest(t)
	ctx := context.Background()

	v := r.Create(ctx)
	clock.advance(31 * time.Minute)

	_, err := r.Get(ctx, v.ID())
	is.True(errors.Is(err, ErrViewNotFound))
	is.Equal(r.Len(), 0)
}

func TestThatAccessKeepsViewAlive(t *testing.T) {
	is, r, clock := setupRegistryTest(t)
	ctx := context.Background()

	v := r.Create(ctx)
	for i := 0; i < 3; i++ {
		clock.advance(20 * time.Minute)
		_, err := r.Get(ctx, v.ID())
		is.NoErr(err)
	}
}

func TestThatSweepRemovesOnlyExpiredViews(t *testing.T) {
	is, r, clock := setupRegistryTest(t)
	ctx := context.Background()

	r.Create(ctx)
	r.Create(ctx)
	clock.advance(20 * time.Minute)
	fresh := r.Create(ctx)
	clock.advance(20 * time.Minute)

	is.Equal(r.Sweep(ctx), 2)
	is.Equal(r.Len(), 1)

	_, err := r.Get(ctx, fresh.ID())
	is.NoErr(err)
}

func TestThatRunStopsWhenContextIsDone(t *testing.T) {
	_, r, _ := setupRegistryTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not stop")
	}
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func setupRegistryTest(t *testing.T) (*is.I, Registry, *testClock) {
	is, _, deps := setupTest(t)

	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	r := NewRegistry(deps.items, deps.geo, deps.locator, DefaultConfig())
	r.(*registry).now = clock.now

	return is, r, clock
}
