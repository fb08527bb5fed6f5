package cache

import (
	"context"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"

	"golang.org/x/sync/singleflight"
)

// CachingGeocoder consults a GeocodeCache before the wrapped provider and
// stores positive results. "No match" is never cached so a later attempt can
// still succeed. Concurrent lookups of the same address share one provider call.
type CachingGeocoder struct {
	next   ports.Geocoder
	cache  ports.GeocodeCache
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachingGeocoder(next ports.Geocoder, c ports.GeocodeCache, logger *slog.Logger) *CachingGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingGeocoder{next: next, cache: c, logger: logger}
}

type lookup struct {
	coords *domain.Coordinates
}

func (g *CachingGeocoder) Geocode(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error) {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return g.next.Geocode(ctx, address, cred)
	}

	hits, err := g.cache.GetMany(ctx, []string{key})
	if err != nil {
		// A broken cache degrades to direct provider calls.
		g.logger.WarnContext(ctx, "geocode cache read failed", "err", err)
	} else if c, ok := hits[key]; ok {
		return &c, nil
	}

	v, err, _ := g.group.Do(key+"\x00"+cred.Key, func() (any, error) {
		c, err := g.next.Geocode(ctx, key, cred)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if err := g.cache.PutMany(ctx, map[string]domain.Coordinates{key: *c}); err != nil {
				g.logger.WarnContext(ctx, "geocode cache write failed", "err", err)
			}
		}
		return lookup{coords: c}, nil
	})
	if err != nil {
		return nil, err
	}

	res := v.(lookup)
	if res.coords == nil {
		return nil, nil
	}
	out := *res.coords
	return &out, nil
}
