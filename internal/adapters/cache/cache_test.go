package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"manifest-route-service/internal/adapters/ors"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/platform/db"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cred = domain.Credential{Source: domain.KeySourceShared, Key: "k"}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = db.Migrate(ctx, conn)
	require.NoError(t, err)
	return conn
}

func TestSQLGeocodeCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewSQLGeocodeCache(newTestDB(t))

	got, err := c.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"Via Roma 10":  {Lon: 9.1, Lat: 45.1},
		"Via Verdi 12": {Lon: 9.2, Lat: 45.2},
	}))
	// Upsert overwrites.
	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{"Via Roma 10": {Lon: 9.5, Lat: 45.5}}))

	got, err = c.GetMany(ctx, []string{"Via Roma 10", "Via Roma 10", " ", "Missing 1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinates{"Via Roma 10": {Lon: 9.5, Lat: 45.5}}, got)

	assert.Error(t, c.PutMany(ctx, map[string]domain.Coordinates{" ": {}}))
}

type memCache struct {
	mu   sync.Mutex
	m    map[string]domain.Coordinates
	puts int
}

func (m *memCache) GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if c, ok := m.m[a]; ok {
			out[a] = c
		}
	}
	return out, nil
}

func (m *memCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range results {
		m.m[k] = v
	}
	m.puts++
	return nil
}

func TestCachingGeocoder_CachesHitsOnly(t *testing.T) {
	ctx := context.Background()
	provider := ors.NewMockGeocoder(map[string]domain.Coordinates{"Via Roma 10": {Lon: 1, Lat: 2}})
	mc := &memCache{m: map[string]domain.Coordinates{}}
	g := NewCachingGeocoder(provider, mc, nil)

	for i := 0; i < 2; i++ {
		c, err := g.Geocode(ctx, " Via  Roma 10 ", cred)
		require.NoError(t, err)
		assert.Equal(t, &domain.Coordinates{Lon: 1, Lat: 2}, c)
	}
	assert.Equal(t, []string{"Via Roma 10"}, provider.Calls())

	for i := 0; i < 2; i++ {
		c, err := g.Geocode(ctx, "Nowhere 1", cred)
		require.NoError(t, err)
		assert.Nil(t, c)
	}
	assert.Len(t, provider.Calls(), 3, "no-match is retried, never cached")
	assert.Equal(t, 1, mc.puts)
}

type geocoderFunc func(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error)

func (f geocoderFunc) Geocode(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error) {
	return f(ctx, address, cred)
}

func TestCachingGeocoder_PropagatesErrors(t *testing.T) {
	boom := &domain.UpstreamError{Op: "geocode", StatusCode: 500}
	g := NewCachingGeocoder(geocoderFunc(func(context.Context, string, domain.Credential) (*domain.Coordinates, error) {
		return nil, boom
	}), &memCache{m: map[string]domain.Coordinates{}}, nil)

	_, err := g.Geocode(context.Background(), "Via Roma 10", cred)
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}
