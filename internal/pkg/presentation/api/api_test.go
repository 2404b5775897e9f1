package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/application/createpoint"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/geolocation"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/router"
	"github.com/ecoleta/ecoleta-web/pkg/client/ibge"
	"github.com/ecoleta/ecoleta-web/pkg/types"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestHealth(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/health")
	is.Equal(resp.StatusCode, http.StatusNoContent)
}

func TestThatItemsAreProxied(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/items")

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "application/json")
	is.Equal(body, `{"meta":{"totalRecords":1,"count":1},"data":[{"id":1,"title":"Lâmpadas","image_url":"http://localhost:3333/uploads/lampadas.svg"}]}`)
}

func TestThatFailingItemsApiGives502(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{err: errors.New("connection refused")}, &geoMock{})
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v0/items")
	is.Equal(resp.StatusCode, http.StatusBadGateway)
}

func TestThatUFsAreSorted(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/ufs")

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body, `{"meta":{"totalRecords":3,"count":3},"data":["AM","SC","SP"]}`)
}

func TestThatCitiesAreReturnedForUF(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/ufs/sc/cities")

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body, `{"meta":{"totalRecords":2,"count":2},"data":["Blumenau","Joinville"]}`)
}

func TestThatRejectedUFGives404(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v0/ufs/XX/cities")
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestThatUnavailableLocalidadesGives502(t *testing.T) {
	is := is.New(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	geo := ibge.New(upstream.URL, time.Second, 0)
	locator, _ := geolocation.New("")
	registry := createpoint.NewRegistry(&itemsMock{}, geo, locator, createpoint.DefaultConfig())

	r := router.New("testService")
	RegisterHandlers(zerolog.Logger{}, r, registry, &itemsMock{}, geo)
	server := httptest.NewServer(r)
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v0/ufs/SC/cities")
	is.Equal(resp.StatusCode, http.StatusBadGateway)

	resp, _ = testRequest(is, server, http.MethodGet, "/api/v0/ufs")
	is.Equal(resp.StatusCode, http.StatusBadGateway)
}

func TestThatViewSnapshotIsReturned(t *testing.T) {
	is, server, registry := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	ctx := context.Background()
	v := registry.Create(ctx)
	v.ClickMap(ctx, 10, 20)

	resp, body := testRequest(is, server, http.MethodGet, "/api/v0/create-point/"+v.ID())

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(body, fmt.Sprintf(`{"data":{"id":"%s","items":[],"ufs":[],"cities":[],"selectedUF":"","selectedCity":"","initialPosition":{"latitude":-27.2092052,"longitude":-49.6401092},"selectedPosition":{"latitude":10,"longitude":20}}}`, v.ID()))
}

func TestThatUnknownViewGives404(t *testing.T) {
	is, server, _ := setupTest(t, &itemsMock{}, &geoMock{})
	defer server.Close()

	resp, _ := testRequest(is, server, http.MethodGet, "/api/v0/create-point/nosuchview")
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func setupTest(t *testing.T, itemsClient *itemsMock, geo *geoMock) (*is.I, *httptest.Server, createpoint.Registry) {
	is := is.New(t)
	log := zerolog.Logger{}

	locator, _ := geolocation.New("")
	registry := createpoint.NewRegistry(itemsClient, geo, locator, createpoint.DefaultConfig())

	r := router.New("testService")
	RegisterHandlers(log, r, registry, itemsClient, geo)

	return is, httptest.NewServer(r), registry
}

func testRequest(is *is.I, ts *httptest.Server, method, path string) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	respBody, _ := io.ReadAll(resp.Body)
	defer resp.Body.Close()

	return resp, string(respBody)
}

type itemsMock struct {
	err error
}

func (m *itemsMock) GetItems(context.Context) ([]types.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []types.Item{{ID: 1, Title: "Lâmpadas", ImageURL: "http://localhost:3333/uploads/lampadas.svg"}}, nil
}

type geoMock struct{}

func (*geoMock) GetUFs(context.Context) ([]string, error) {
	return []string{"SP", "SC", "AM"}, nil
}

func (*geoMock) GetCities(_ context.Context, uf string) ([]string, error) {
	if uf != "SC" {
		return nil, fmt.Errorf("%w: %s", ibge.ErrNotFound, uf)
	}
	return []string{"Blumenau", "Joinville"}, nil
}
