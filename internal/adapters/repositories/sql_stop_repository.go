package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/platform/obs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SQLStopRepository persists routes, stops, runs and provider keys through
// sqlx. It runs unchanged on SQLite and PostgreSQL.
type SQLStopRepository struct{ DB *sqlx.DB }

func NewSQLStopRepository(db *sqlx.DB) *SQLStopRepository {
	return &SQLStopRepository{DB: db}
}

type routeRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	OwnerID   string `db:"owner_id"`
	CreatedAt int64  `db:"created_at"`
}

type stopRow struct {
	ID                 string          `db:"id"`
	RouteID            string          `db:"route_id"`
	OriginalPosition   int             `db:"original_position"`
	OptimizedPosition  sql.NullInt64   `db:"optimized_position"`
	Address            string          `db:"address"`
	City               sql.NullString  `db:"city"`
	PackageCount       sql.NullInt64   `db:"package_count"`
	DeliveryWindow     sql.NullString  `db:"delivery_window"`
	Kind               string          `db:"kind"`
	Lon                sql.NullFloat64 `db:"lon"`
	Lat                sql.NullFloat64 `db:"lat"`
	Completed          int             `db:"completed"`
	SuspectedDuplicate sql.NullInt64   `db:"suspected_duplicate"`
	CreatedAt          int64           `db:"created_at"`
}

type runRow struct {
	ID              string `db:"id"`
	RouteID         string `db:"route_id"`
	Algorithm       string `db:"algorithm"`
	KeyMode         string `db:"key_mode"`
	DistanceMeters  int    `db:"distance_meters"`
	DurationSeconds int    `db:"duration_seconds"`
	CreatedAt       int64  `db:"created_at"`
}

const stopColumns = `id, route_id, original_position, optimized_position, address, city,
	package_count, delivery_window, kind, lon, lat, completed, suspected_duplicate, created_at`

func (s *SQLStopRepository) CreateRoute(
	ctx context.Context,
	route domain.Route,
	parsed []domain.ParsedStop,
) (_ domain.Route, _ []domain.Stop, err error) {
	defer obs.Time(ctx, "repo.CreateRoute")(&err)

	if strings.TrimSpace(route.Name) == "" {
		return domain.Route{}, nil, &domain.InputError{Reason: "route name is required"}
	}
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	if route.CreatedAt.IsZero() {
		route.CreatedAt = time.Now().UTC()
	}

	stops, err := materialize(route, parsed, uuid.NewString)
	if err != nil {
		return domain.Route{}, nil, err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Route{}, nil, fmt.Errorf("create route: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
	INSERT INTO routes (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`),
		route.ID, route.Name, route.OwnerID, route.CreatedAt.UnixMilli()); err != nil {
		return domain.Route{}, nil, fmt.Errorf("create route: insert route: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
	INSERT INTO stops (id, route_id, original_position, address, city, package_count,
		delivery_window, kind, suspected_duplicate, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return domain.Route{}, nil, fmt.Errorf("create route: prepare stop insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stops {
		if _, err := stmt.ExecContext(ctx,
			st.ID, st.RouteID, st.OriginalPosition, st.Address,
			nullString(st.City), nullInt(st.PackageCount), nullString(st.DeliveryWindow),
			string(st.Kind), nullInt(st.SuspectedDuplicate), st.CreatedAt.UnixMilli(),
		); err != nil {
			return domain.Route{}, nil, fmt.Errorf("create route: insert stop %d: %w", st.OriginalPosition, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Route{}, nil, fmt.Errorf("create route: commit: %w", err)
	}

	return route, stops, nil
}

func (s *SQLStopRepository) GetRoute(ctx context.Context, routeID string) (domain.Route, error) {
	var r routeRow
	err := s.DB.GetContext(ctx, &r, s.DB.Rebind(`SELECT id, name, owner_id, created_at FROM routes WHERE id = ?`), routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("get route: %w", err)
	}

	return domain.Route{
		ID:        r.ID,
		Name:      r.Name,
		OwnerID:   r.OwnerID,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}, nil
}

func (s *SQLStopRepository) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}

	var rows []stopRow
	q := `SELECT ` + stopColumns + ` FROM stops WHERE route_id = ? ORDER BY original_position`
	if err := s.DB.SelectContext(ctx, &rows, s.DB.Rebind(q), routeID); err != nil {
		return nil, fmt.Errorf("list stops: query stops table: %w", err)
	}

	out := make([]domain.Stop, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *SQLStopRepository) UpdateCoordinates(ctx context.Context, stopID string, c domain.Coordinates) error {
	if !c.Valid() {
		return &domain.InputError{StopID: stopID, Reason: "coordinates out of range"}
	}

	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE stops SET lon = ?, lat = ? WHERE id = ?`), c.Lon, c.Lat, stopID)
	if err != nil {
		return fmt.Errorf("update coordinates stop=%s: %w", stopID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stop %s: %w", stopID, domain.ErrNotFound)
	}
	return nil
}

// SaveOptimizedOrder writes positions 1..N in one transaction. Anything but
// a full permutation of the route's stops is rejected and nothing changes.
func (s *SQLStopRepository) SaveOptimizedOrder(ctx context.Context, routeID string, orderedStopIDs []string) (err error) {
	defer obs.Time(ctx, "repo.SaveOptimizedOrder")(&err)

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save optimized order: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing []string
	if err := tx.SelectContext(ctx, &existing, tx.Rebind(`SELECT id FROM stops WHERE route_id = ?`), routeID); err != nil {
		return fmt.Errorf("save optimized order: list stop ids: %w", err)
	}
	if len(existing) == 0 {
		return fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	if err := checkPermutation(routeID, existing, orderedStopIDs); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`UPDATE stops SET optimized_position = ? WHERE id = ? AND route_id = ?`))
	if err != nil {
		return fmt.Errorf("save optimized order: prepare: %w", err)
	}
	defer stmt.Close()

	for i, id := range orderedStopIDs {
		if _, err := stmt.ExecContext(ctx, i+1, id, routeID); err != nil {
			return fmt.Errorf("save optimized order stop=%s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save optimized order: commit: %w", err)
	}
	return nil
}

func (s *SQLStopRepository) AppendRun(ctx context.Context, run domain.OptimizationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
	INSERT INTO optimization_runs (id, route_id, algorithm, key_mode, distance_meters, duration_seconds, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.RouteID, run.Algorithm, string(run.KeyMode),
		run.DistanceMeters, run.DurationSeconds, run.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append run route=%s: %w", run.RouteID, err)
	}
	return nil
}

func (s *SQLStopRepository) ListRuns(ctx context.Context, routeID string) ([]domain.OptimizationRun, error) {
	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}

	var rows []runRow
	err := s.DB.SelectContext(ctx, &rows, s.DB.Rebind(`
	SELECT id, route_id, algorithm, key_mode, distance_meters, duration_seconds, created_at
	FROM optimization_runs WHERE route_id = ? ORDER BY created_at, id`), routeID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]domain.OptimizationRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.OptimizationRun{
			ID:              r.ID,
			RouteID:         r.RouteID,
			Algorithm:       r.Algorithm,
			KeyMode:         domain.KeySource(r.KeyMode),
			DistanceMeters:  r.DistanceMeters,
			DurationSeconds: r.DurationSeconds,
			CreatedAt:       time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return out, nil
}

func (s *SQLStopRepository) GetProviderKey(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.DB.GetContext(ctx, &key, s.DB.Rebind(`SELECT api_key FROM user_provider_keys WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get provider key: %w", err)
	}
	return key, nil
}

func (s *SQLStopRepository) SetProviderKey(ctx context.Context, userID, apiKey string) error {
	if strings.TrimSpace(userID) == "" {
		return &domain.InputError{Reason: "user id is required"}
	}

	if strings.TrimSpace(apiKey) == "" {
		if _, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM user_provider_keys WHERE user_id = ?`), userID); err != nil {
			return fmt.Errorf("clear provider key: %w", err)
		}
		return nil
	}

	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
	INSERT INTO user_provider_keys (user_id, api_key, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`),
		userID, strings.TrimSpace(apiKey), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set provider key: %w", err)
	}
	return nil
}

func (r stopRow) toDomain() domain.Stop {
	st := domain.Stop{
		ID:               r.ID,
		RouteID:          r.RouteID,
		OriginalPosition: r.OriginalPosition,
		Address:          r.Address,
		Kind:             domain.ParseStopKind(r.Kind),
		Completed:        r.Completed != 0,
		CreatedAt:        time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.OptimizedPosition.Valid {
		v := int(r.OptimizedPosition.Int64)
		st.OptimizedPosition = &v
	}
	if r.City.Valid {
		v := r.City.String
		st.City = &v
	}
	if r.PackageCount.Valid {
		v := int(r.PackageCount.Int64)
		st.PackageCount = &v
	}
	if r.DeliveryWindow.Valid {
		v := r.DeliveryWindow.String
		st.DeliveryWindow = &v
	}
	if r.Lon.Valid && r.Lat.Valid {
		st.Coordinates = &domain.Coordinates{Lon: r.Lon.Float64, Lat: r.Lat.Float64}
	}
	if r.SuspectedDuplicate.Valid {
		v := int(r.SuspectedDuplicate.Int64)
		st.SuspectedDuplicate = &v
	}
	return st
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
