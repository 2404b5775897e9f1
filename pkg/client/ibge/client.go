// Package ibge reads states and their micro regions from the IBGE localidades API.
package ibge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/tracing"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const DefaultURL string = "https://servicodados.ibge.gov.br/api/v1/localidades"

type Client interface {
	// GetUFs returns the state codes in the order the service lists them.
	GetUFs(ctx context.Context) ([]string, error)
	// GetCities returns the names of the micro regions of a state, ordered by name.
	GetCities(ctx context.Context, uf string) ([]string, error)
}

var (
	ErrNotFound         = errors.New("not found")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

type ufResponse struct {
	Sigla string `json:"sigla"`
}

type cityResponse struct {
	Nome string `json:"nome"`
}

type ibgeClient struct {
	url        string
	httpClient http.Client
	limiter    *rate.Limiter
}

var tracer = otel.Tracer("ecoleta-ibge-client")

// New creates a client for the localidades API. Outgoing requests are limited to
// requestsPerSecond with a burst of the same size, zero or less disables the limit.
func New(baseUrl string, timeout time.Duration, requestsPerSecond int) Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}

	return &ibgeClient{
		url: strings.TrimSuffix(baseUrl, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		limiter: limiter,
	}
}

func (c *ibgeClient) GetUFs(ctx context.Context) ([]string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-ufs")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var ufs []ufResponse
	err = c.get(ctx, c.url+"/estados", &ufs)
	if err != nil {
		return nil, err
	}

	return lo.Map(ufs, func(uf ufResponse, _ int) string { return uf.Sigla }), nil
}

func (c *ibgeClient) GetCities(ctx context.Context, uf string) ([]string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-cities")
	span.SetAttributes(attribute.String("uf", uf))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var cities []cityResponse
	err = c.get(ctx, fmt.Sprintf("%s/estados/%s/microrregioes?orderBy=nome", c.url, url.PathEscape(uf)), &cities)
	if err != nil {
		return nil, err
	}

	return lo.Map(cities, func(city cityResponse, _ int) string { return city.Nome }), nil
}

func (c *ibgeClient) get(ctx context.Context, endpoint string, result any) error {
	log := logging.GetLoggerFromContext(ctx)

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("url", endpoint).Msg("requesting localidades")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to retrieve %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err = json.Unmarshal(b, result); err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}
