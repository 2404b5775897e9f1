package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/ecoleta/ecoleta-web/internal/pkg/application/createpoint"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/geolocation"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/logging"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/router"
	"github.com/ecoleta/ecoleta-web/internal/pkg/infrastructure/tracing"
	"github.com/ecoleta/ecoleta-web/internal/pkg/presentation/api"
	"github.com/ecoleta/ecoleta-web/internal/pkg/presentation/gui"
	"github.com/ecoleta/ecoleta-web/pkg/client/ibge"
	"github.com/ecoleta/ecoleta-web/pkg/client/items"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const serviceName string = "ecoleta-web"

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",

		configurationFile:     "/opt/ecoleta/config/page.yaml",
		itemsApiUrl:           "http://localhost:3333",
		ibgeApiUrl:            ibge.DefaultURL,
		ibgeRequestsPerSecond: "10",
		requestTimeout:        "10s",
		geoipDatabase:         "",

		redisHost:     "",
		redisPort:     "6379",
		redisPassword: "",
		redisDB:       "0",
		cacheTTL:      "24h",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := parseExternalConfig(defaultFlags())

	serviceVersion := version()
	ctx, logger := logging.NewLogger(ctx, serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	exitIf(err, logger, "failed to init tracing")
	defer cleanup()

	cfg, err := loadPageConfig(flags[configurationFile])
	exitIf(err, logger, "could not load page configuration")

	locator, err := geolocation.New(flags[geoipDatabase])
	exitIf(err, logger, "could not open geoip database")
	defer locator.Close()

	timeout, err := time.ParseDuration(flags[requestTimeout])
	exitIf(err, logger, "bad request timeout")

	itemsClient := items.New(flags[itemsApiUrl], timeout)
	geo, err := newGeographyClient(flags, timeout)
	exitIf(err, logger, "could not create geography client")

	registry := createpoint.NewRegistry(itemsClient, geo, locator, *cfg)
	go registry.Run(ctx, time.Minute)

	r := createRouter(logger, registry, itemsClient, geo, *cfg)

	server := &http.Server{
		Addr:              net.JoinHostPort(flags[listenAddress], flags[servicePort]),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shut down gracefully")
		}
	}()

	logger.Info().Str("addr", server.Addr).Msg("listening")

	err = server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		exitIf(err, logger, "failed to start request router")
	}

	logger.Info().Msg("shut down")
}

func createRouter(logger zerolog.Logger, registry createpoint.Registry, itemsClient items.Client, geo ibge.Client, cfg createpoint.Config) *chi.Mux {
	r := router.New(serviceName)

	api.RegisterHandlers(logger, r, registry, itemsClient, geo)
	gui.RegisterHandlers(logger, r, registry, cfg)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/create-point", http.StatusFound)
	})

	return r
}

func newGeographyClient(flags flagMap, timeout time.Duration) (ibge.Client, error) {
	rps, err := strconv.Atoi(flags[ibgeRequestsPerSecond])
	if err != nil {
		return nil, fmt.Errorf("bad ibge request rate: %w", err)
	}

	geo := ibge.New(flags[ibgeApiUrl], timeout, rps)

	if flags[redisHost] == "" {
		return geo, nil
	}

	db, err := strconv.Atoi(flags[redisDB])
	if err != nil {
		return nil, fmt.Errorf("bad redis db: %w", err)
	}

	ttl, err := time.ParseDuration(flags[cacheTTL])
	if err != nil {
		return nil, fmt.Errorf("bad cache ttl: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(flags[redisHost], flags[redisPort]),
		Password: flags[redisPassword],
		DB:       db,
	})

	return ibge.NewCachingClient(geo, rdb, ttl), nil
}

// loadPageConfig reads the page configuration, falling back to the defaults
// when no file exists at path.
func loadPageConfig(path string) (*createpoint.Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := createpoint.DefaultConfig()
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return createpoint.LoadConfiguration(f)
}

func parseExternalConfig(flags flagMap) flagMap {
	// Values in a local .env file do not override variables already set
	_ = godotenv.Load()

	// Allow environment variables to override certain defaults
	envOrDef := func(name string, def string) string {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		return def
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])

	flags[configurationFile] = envOrDef("CONFIG_FILE", flags[configurationFile])
	flags[itemsApiUrl] = envOrDef("ITEMS_API_URL", flags[itemsApiUrl])
	flags[ibgeApiUrl] = envOrDef("IBGE_API_URL", flags[ibgeApiUrl])
	flags[ibgeRequestsPerSecond] = envOrDef("IBGE_REQUESTS_PER_SECOND", flags[ibgeRequestsPerSecond])
	flags[requestTimeout] = envOrDef("REQUEST_TIMEOUT", flags[requestTimeout])
	flags[geoipDatabase] = envOrDef("GEOIP_DATABASE", flags[geoipDatabase])

	flags[redisHost] = envOrDef("REDIS_HOST", flags[redisHost])
	flags[redisPort] = envOrDef("REDIS_PORT", flags[redisPort])
	flags[redisPassword] = envOrDef("REDIS_PASS", flags[redisPassword])
	flags[redisDB] = envOrDef("REDIS_DB", flags[redisDB])
	flags[cacheTTL] = envOrDef("CACHE_TTL", flags[cacheTTL])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "page configuration file", apply(configurationFile))
	flag.Func("items", "base url of the ecoleta items api", apply(itemsApiUrl))
	flag.Func("geoip", "path to a GeoLite2 City database", apply(geoipDatabase))
	flag.Parse()

	return flags
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Error().Err(err).Msg(msg)
		time.Sleep(2 * time.Second)
		os.Exit(1)
	}
}
