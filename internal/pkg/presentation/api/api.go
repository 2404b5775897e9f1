package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ecoleta/ecoleta-web/internal/pkg/application/createpoint"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/tracing"
	"github.com/ecoleta/ecoleta-web/pkg/client/ibge"
	"github.com/ecoleta/ecoleta-web/pkg/client/items"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ecoleta-web/api")

func RegisterHandlers(log zerolog.Logger, router *chi.Mux, registry createpoint.Registry, itemsClient items.Client, geo ibge.Client) *chi.Mux {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v0", func(r chi.Router) {
		r.Get("/items", getItemsHandler(log, itemsClient))
		r.Get("/ufs", getUFsHandler(log, geo))
		r.Get("/ufs/{uf}/cities", getCitiesHandler(log, geo))
		r.Get("/create-point/{viewID}", getViewHandler(log, registry))
	})

	return router
}

func getItemsHandler(log zerolog.Logger, itemsClient items.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "get-items")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		result, err := itemsClient.GetItems(ctx)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch items")
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		writeJSON(w, NewApiResponse(result).Byte())
	}
}

func getUFsHandler(log zerolog.Logger, geo ibge.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "get-ufs")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		ufs, err := createpoint.SortedUFs(ctx, geo)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch states")
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		writeJSON(w, NewApiResponse(ufs).Byte())
	}
}

func getCitiesHandler(log zerolog.Logger, geo ibge.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "get-cities")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		uf := strings.ToUpper(chi.URLParam(r, "uf"))
		requestLogger = requestLogger.With().Str("uf", uf).Logger()

		cities, err := geo.GetCities(ctx, uf)
		if errors.Is(err, ibge.ErrNotFound) {
			requestLogger.Debug().Err(err).Msg("state rejected by localidades")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch cities")
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		writeJSON(w, NewApiResponse(cities).Byte())
	}
}

func getViewHandler(log zerolog.Logger, registry createpoint.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "get-view")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		viewID := chi.URLParam(r, "viewID")

		v, err := registry.Get(ctx, viewID)
		if err != nil {
			requestLogger.Debug().Str("view", viewID).Msg("view not found")
			w.WriteHeader(http.StatusNotFound)
			return
		}

		b, err := json.Marshal(ApiResponse{Data: v.Snapshot()})
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to marshal view")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, b)
	}
}

func writeJSON(w http.ResponseWriter, b []byte) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
