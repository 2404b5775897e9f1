package createpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/geolocation"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/pkg/client/ibge"
	"github.com/ecoleta/ecoleta-web/pkg/client/items"
	"github.com/google/uuid"
)

var ErrViewNotFound = errors.New("view not found")

// Registry keeps the views of all open create point pages. A view that has not
// been accessed for the configured ttl is removed by Sweep.
type Registry interface {
	Create(ctx context.Context) View
	Get(ctx context.Context, id string) (View, error)
	Sweep(ctx context.Context) int
	Run(ctx context.Context, interval time.Duration)
	Len() int
}

type entry struct {
	view       View
	lastAccess time.Time
}

type registry struct {
	mu    sync.Mutex
	views map[string]*entry

	items   items.Client
	geo     ibge.Client
	locator geolocation.Locator
	cfg     Config

	now func() time.Time
}

func NewRegistry(itemsClient items.Client, geo ibge.Client, locator geolocation.Locator, cfg Config) Registry {
	return &registry{
		views:   map[string]*entry{},
		items:   itemsClient,
		geo:     geo,
		locator: locator,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (r *registry) Create(ctx context.Context) View {
	v := NewView(uuid.NewString(), r.items, r.geo, r.locator, r.cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.views[v.ID()] = &entry{view: v, lastAccess: r.now()}

	log := logging.GetLoggerFromContext(ctx)
	log.Debug().Str("view", v.ID()).Msg("created view")

	return v
}

func (r *registry) Get(ctx context.Context, id string) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}

	now := r.now()
	if now.Sub(e.lastAccess) > r.cfg.ViewTTL {
		delete(r.views, id)
		return nil, ErrViewNotFound
	}

	e.lastAccess = now

	return e.view, nil
}

func (r *registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0

	for id, e := range r.views {
		if now.Sub(e.lastAccess) > r.cfg.ViewTTL {
			delete(r.views, id)
			removed++
		}
	}

	if removed > 0 {
		log := logging.GetLoggerFromContext(ctx)
		log.Debug().Int("removed", removed).Int("remaining", len(r.views)).Msg("swept expired views")
	}

	return removed
}

// Run sweeps expired views every interval until ctx is done.
func (r *registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.views)
}
