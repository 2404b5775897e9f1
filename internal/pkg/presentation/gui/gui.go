package gui

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecoleta/ecoleta-web/internal/pkg/application/createpoint"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/geolocation"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ecoleta-web/gui")

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var errBadCoordinate = errors.New("bad coordinate")

func RegisterHandlers(log zerolog.Logger, router *chi.Mux, registry createpoint.Registry, cfg createpoint.Config) *chi.Mux {

	static, _ := fs.Sub(staticFS, "static")
	FileServer(router, "/static", http.FS(static))

	router.Route("/create-point", func(r chi.Router) {
		r.Get("/", NewCreateViewHandler(log, registry))
		r.Get("/{viewID}", NewPageHandler(log, registry, cfg))
		r.Post("/{viewID}/uf", NewSelectUFHandler(log, registry))
		r.Post("/{viewID}/city", NewSelectCityHandler(log, registry))
		r.Post("/{viewID}/position", NewClickMapHandler(log, registry))
	})

	return router
}

func NewCreateViewHandler(log zerolog.Logger, registry createpoint.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "create-view")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		v := registry.Create(ctx)
		v.Mount(ctx, geolocation.ClientIP(r))

		requestLogger.Info().Str("view", v.ID()).Msg("opened create point page")

		http.Redirect(w, r, pagePath(v.ID()), http.StatusSeeOther)
	}
}

func NewPageHandler(log zerolog.Logger, registry createpoint.Registry, cfg createpoint.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "render-page")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		v, err := registry.Get(ctx, chi.URLParam(r, "viewID"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		data := struct {
			State createpoint.State
			Map   createpoint.MapConfig
		}{
			State: v.Snapshot(),
			Map:   cfg.Map,
		}

		buf := &strings.Builder{}
		if err = templates.ExecuteTemplate(buf, "create-point.html", data); err != nil {
			requestLogger.Error().Err(err).Msg("unable to render page")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Add("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(buf.String()))
	}
}

func NewSelectUFHandler(log zerolog.Logger, registry createpoint.Registry) http.HandlerFunc {
	return viewAction(log, registry, "select-uf", func(r *http.Request, v createpoint.View) error {
		v.SelectUF(r.Context(), strings.TrimSpace(r.PostFormValue("uf")))
		return nil
	})
}

func NewSelectCityHandler(log zerolog.Logger, registry createpoint.Registry) http.HandlerFunc {
	return viewAction(log, registry, "select-city", func(r *http.Request, v createpoint.View) error {
		v.SelectCity(r.Context(), r.PostFormValue("city"))
		return nil
	})
}

func NewClickMapHandler(log zerolog.Logger, registry createpoint.Registry) http.HandlerFunc {
	return viewAction(log, registry, "click-map", func(r *http.Request, v createpoint.View) error {
		lat, err := parseCoordinate(r.PostFormValue("lat"), 90)
		if err != nil {
			return err
		}
		lng, err := parseCoordinate(r.PostFormValue("lng"), 180)
		if err != nil {
			return err
		}

		v.ClickMap(r.Context(), lat, lng)
		return nil
	})
}

// viewAction looks up the view named in the path, applies the action to it and
// sends the browser back to the page.
func viewAction(log zerolog.Logger, registry createpoint.Registry, name string, action func(*http.Request, createpoint.View) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), name)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		_, ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		viewID := chi.URLParam(r, "viewID")
		requestLogger = requestLogger.With().Str("view", viewID).Logger()

		v, err := registry.Get(ctx, viewID)
		if err != nil {
			requestLogger.Debug().Msg("view not found")
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if err = r.ParseForm(); err != nil {
			requestLogger.Error().Err(err).Msg("unable to parse form")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		err = action(r.WithContext(logging.NewContextWithLogger(ctx, requestLogger)), v)
		if err != nil {
			requestLogger.Info().Err(err).Msg("rejected form input")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		http.Redirect(w, r, pagePath(viewID), http.StatusSeeOther)
	}
}

func parseCoordinate(value string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadCoordinate, value)
	}

	if math.IsNaN(f) || f < -limit || f > limit {
		return 0, fmt.Errorf("%w: %f out of range", errBadCoordinate, f)
	}

	return f, nil
}

func pagePath(viewID string) string {
	return "/create-point/" + viewID
}

func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit any URL parameters.")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fileServer := http.StripPrefix(pathPrefix, http.FileServer(root))
		fileServer.ServeHTTP(w, r)
	})
}
