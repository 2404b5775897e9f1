package geolocation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/ecoleta/ecoleta-web/pkg/types"
	"github.com/oschwald/geoip2-golang"
)

var (
	ErrNoDatabase      = errors.New("no geoip database configured")
	ErrInvalidAddress  = errors.New("invalid ip address")
	ErrLocationUnknown = errors.New("location unknown")
)

// Locator answers the current position of the client behind an ip address.
type Locator interface {
	Locate(ctx context.Context, ip string) (types.Location, error)
	Close() error
}

type geoipLocator struct {
	reader *geoip2.Reader
}

// New opens a GeoIP2 or GeoLite2 City database. An empty path gives a locator that
// never resolves, leaving callers with their fallback position.
func New(databasePath string) (Locator, error) {
	if databasePath == "" {
		return &disabledLocator{}, nil
	}

	reader, err := geoip2.Open(databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", databasePath, err)
	}

	return &geoipLocator{reader: reader}, nil
}

func (l *geoipLocator) Locate(ctx context.Context, ip string) (types.Location, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return types.Location{}, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	city, err := l.reader.City(addr)
	if err != nil {
		return types.Location{}, fmt.Errorf("geoip lookup failed: %w", err)
	}

	// private and unlisted ranges resolve to an empty record
	if city.Location.Latitude == 0 && city.Location.Longitude == 0 {
		return types.Location{}, fmt.Errorf("%w: %s", ErrLocationUnknown, ip)
	}

	return types.NewLocation(city.Location.Latitude, city.Location.Longitude), nil
}

func (l *geoipLocator) Close() error {
	return l.reader.Close()
}

type disabledLocator struct{}

func (disabledLocator) Locate(context.Context, string) (types.Location, error) {
	return types.Location{}, ErrNoDatabase
}

func (disabledLocator) Close() error {
	return nil
}

// ClientIP picks the address of the client that made the request, preferring the
// headers set by reverse proxies over the address of the connection.
func ClientIP(r *http.Request) string {
	h := r.Header

	if x := h.Get("X-Forwarded-For"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("X-Real-Ip"); x != "" {
		return strings.TrimSpace(x)
	}
	if x := h.Get("Forwarded"); x != "" {
		i := strings.Index(strings.ToLower(x), "for=")
		if i >= 0 {
			y := x[i+4:]
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			y = strings.Trim(y, "\" ")
			// node may carry a port, "192.0.2.60:4711" or "[2001:db8::1]:4711"
			if host, _, err := net.SplitHostPort(y); err == nil {
				return host
			}
			return strings.Trim(y, "[]")
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
