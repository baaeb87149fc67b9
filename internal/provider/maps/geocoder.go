// Package maps resolves clinic addresses to coordinates.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const name = "maps"

var (
	ErrAddressNotFound   = errors.New("address could not be geocoded")
	ErrGeocodingDisabled = errors.New("geocoding is disabled")
	ErrGeocodingFailure  = errors.New("geocoding request failed")
)

type Geocoder struct {
	http    *resty.Client
	cfg     config.MapsConfig
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	retry   provider.RetryPolicy
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewGeocoder(cfg config.MapsConfig, m *metrics.Collector, log *zap.Logger) *Geocoder {
	log = log.Named(name)
	return &Geocoder{
		http:    provider.NewClient(cfg.BaseURL, cfg.Timeout),
		cfg:     cfg,
		breaker: provider.NewBreaker[*resty.Response](name, log),
		retry:   provider.DefaultRetryPolicy,
		metrics: m,
		log:     log,
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the coordinates of the first match for address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (p geo.Point, err error) {
	if !g.cfg.Enabled || g.cfg.APIKey == "" {
		return geo.Point{}, ErrGeocodingDisabled
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Point{}, ErrAddressNotFound
	}

	ctx, span := provider.StartSpan(ctx, name, "geocode")
	start := time.Now()
	defer func() { provider.Finish(span, g.metrics, name, "geocode", start, err) }()

	var out geocodeResponse
	err = provider.Retry(ctx, g.retry, g.log, func() error {
		out = geocodeResponse{}
		_, err := g.breaker.Execute(func() (*resty.Response, error) {
			resp, err := g.http.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{"address": address, "key": g.cfg.APIKey}).
				SetResult(&out).
				Get("/geocode/json")
			if err != nil {
				return nil, err
			}
			return resp, provider.CheckResponse(name, resp)
		})
		return err
	})
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %w", ErrGeocodingFailure, err)
	}

	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return geo.Point{}, ErrAddressNotFound
	default:
		return geo.Point{}, fmt.Errorf("%w: status %s: %s", ErrGeocodingFailure, out.Status, out.ErrorMessage)
	}
	if len(out.Results) == 0 {
		return geo.Point{}, ErrAddressNotFound
	}

	loc := out.Results[0].Geometry.Location
	return geo.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
