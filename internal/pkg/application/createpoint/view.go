package createpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/geolocation"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/pkg/client/ibge"
	"github.com/ecoleta/ecoleta-web/pkg/client/items"
	"github.com/ecoleta/ecoleta-web/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("ecoleta-web/createpoint")

// View holds the state of one create point page.
type View interface {
	ID() string

	// Mount loads the item catalog, the list of states and the initial map
	// position. Only the first call has any effect.
	Mount(ctx context.Context, clientIP string)

	SelectUF(ctx context.Context, uf string)
	SelectCity(ctx context.Context, city string)
	ClickMap(ctx context.Context, lat, lng float64)

	Snapshot() State
}

type State struct {
	ID               string         `json:"id"`
	Items            []types.Item   `json:"items"`
	UFs              []string       `json:"ufs"`
	Cities           []string       `json:"cities"`
	SelectedUF       string         `json:"selectedUF"`
	SelectedCity     string         `json:"selectedCity"`
	InitialPosition  types.Location `json:"initialPosition"`
	SelectedPosition types.Location `json:"selectedPosition"`
}

type view struct {
	id string

	items   items.Client
	geo     ibge.Client
	locator geolocation.Locator

	mountOnce sync.Once

	mu               sync.Mutex
	itemList         []types.Item
	ufs              []string
	cities           []string
	selectedUF       string
	selectedCity     string
	initialPosition  types.Location
	selectedPosition types.Location

	// bumped on every change of selectedUF, city responses for an older
	// generation are dropped
	generation uint64
}

func NewView(id string, itemsClient items.Client, geo ibge.Client, locator geolocation.Locator, cfg Config) View {
	return &view{
		id:              id,
		items:           itemsClient,
		geo:             geo,
		locator:         locator,
		itemList:        []types.Item{},
		ufs:             []string{},
		cities:          []string{},
		initialPosition: cfg.FallbackPosition,
	}
}

func (v *view) ID() string {
	return v.id
}

func (v *view) Mount(ctx context.Context, clientIP string) {
	v.mountOnce.Do(func() {
		ctx, span := tracer.Start(ctx, "mount-view")
		span.SetAttributes(attribute.String("view", v.id))
		defer span.End()

		log := logging.GetLoggerFromContext(ctx).With().Str("view", v.id).Logger()

		// the fetches are independent, a failing one must not cancel the others
		var g errgroup.Group

		g.Go(func() error {
			v.locate(ctx, clientIP)
			return nil
		})
		g.Go(func() error {
			return v.loadItems(ctx)
		})
		g.Go(func() error {
			return v.loadUFs(ctx)
		})

		if err := g.Wait(); err != nil {
			log.Warn().Err(err).Msg("view mounted with incomplete data")
		}
	})
}

// locate is only reached from within mountOnce, so geolocation runs at most
// once per view.
func (v *view) locate(ctx context.Context, clientIP string) {
	log := logging.GetLoggerFromContext(ctx)

	pos, err := v.locator.Locate(ctx, clientIP)
	if err != nil {
		if !errors.Is(err, geolocation.ErrNoDatabase) {
			log.Debug().Err(err).Str("ip", clientIP).Msg("keeping fallback position")
		}
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.initialPosition = pos
}

func (v *view) loadItems(ctx context.Context) error {
	log := logging.GetLoggerFromContext(ctx)

	result, err := v.items.GetItems(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch items")
		return fmt.Errorf("items: %w", err)
	}

	if result == nil {
		result = []types.Item{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.itemList = result

	return nil
}

func (v *view) loadUFs(ctx context.Context) error {
	log := logging.GetLoggerFromContext(ctx)

	result, err := SortedUFs(ctx, v.geo)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch states")
		return fmt.Errorf("states: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.ufs = result

	return nil
}

// SortedUFs returns the state codes known to geo in ascending order.
func SortedUFs(ctx context.Context, geo ibge.Client) ([]string, error) {
	ufs, err := geo.GetUFs(ctx)
	if err != nil {
		return nil, err
	}

	slices.Sort(ufs)

	return ufs, nil
}

func (v *view) SelectUF(ctx context.Context, uf string) {
	log := logging.GetLoggerFromContext(ctx).With().Str("view", v.id).Str("uf", uf).Logger()

	v.mu.Lock()
	if uf == v.selectedUF {
		v.mu.Unlock()
		return
	}
	v.selectedUF = uf
	v.generation++
	generation := v.generation
	v.mu.Unlock()

	if uf == "" {
		return
	}

	ctx, span := tracer.Start(ctx, "select-uf")
	span.SetAttributes(attribute.String("uf", uf))
	defer span.End()

	cities, err := v.geo.GetCities(ctx, uf)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch cities")
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if generation != v.generation {
		log.Debug().Msg("dropping cities for a superseded state selection")
		return
	}

	v.cities = cities
}

func (v *view) SelectCity(ctx context.Context, city string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.selectedCity = city
}

func (v *view) ClickMap(ctx context.Context, lat, lng float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.selectedPosition = types.NewLocation(lat, lng)
}

func (v *view) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	return State{
		ID:               v.id,
		Items:            slices.Clone(v.itemList),
		UFs:              slices.Clone(v.ufs),
		Cities:           slices.Clone(v.cities),
		SelectedUF:       v.selectedUF,
		SelectedCity:     v.selectedCity,
		InitialPosition:  v.initialPosition,
		SelectedPosition: v.selectedPosition,
	}
}
