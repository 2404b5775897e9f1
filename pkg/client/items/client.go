package items

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/tracing"
	"github.com/ecoleta/ecoleta-web/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

type Client interface {
	GetItems(ctx context.Context) ([]types.Item, error)
}

var ErrUnexpectedStatus = errors.New("unexpected response status")

type itemsClient struct {
	url        string
	httpClient http.Client
}

var tracer = otel.Tracer("ecoleta-items-client")

func New(itemsApiUrl string, timeout time.Duration) Client {
	return &itemsClient{
		url: strings.TrimSuffix(itemsApiUrl, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

func (c *itemsClient) GetItems(ctx context.Context) ([]types.Item, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-items")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetLoggerFromContext(ctx)
	log.Debug().Msg("fetching collectible items")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/items", nil)
	if err != nil {
		err = fmt.Errorf("failed to create http request: %w", err)
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to retrieve items: %w", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return nil, err
	}

	result := []types.Item{}

	err = json.Unmarshal(respBody, &result)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response body: %w", err)
		return nil, err
	}

	return result, nil
}
