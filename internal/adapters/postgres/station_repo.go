package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stazy/chargeshare/internal/core/domain"
)

const stationColumns = `id, name, COALESCE(address, ''), COALESCE(city, ''), COALESCE(region, ''),
	latitude, longitude, COALESCE(power_kw, 0), COALESCE(connector_types, '{}'),
	COALESCE(available, false), COALESCE(price_per_hour, 0),
	COALESCE(operator, ''), COALESCE(access_type, ''), COALESCE(description, '')`

// StationRepo implements ports.StationRepository over the stations_irve table.
type StationRepo struct {
	db *DB
}

// NewStationRepo creates a new StationRepo.
func NewStationRepo(db *DB) *StationRepo {
	return &StationRepo{db: db}
}

// List returns one page of located stations, optionally restricted to a region or city.
func (r *StationRepo) List(ctx context.Context, q domain.StationQuery) (*domain.StationPage, error) {
	var total int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM stations_irve
		WHERE latitude <> 0 AND longitude <> 0
		  AND ($1 = '' OR region = $1)
		  AND ($2 = '' OR city = $2)
	`, q.Region, q.City).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count stations: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+stationColumns+`
		FROM stations_irve
		WHERE latitude <> 0 AND longitude <> 0
		  AND ($1 = '' OR region = $1)
		  AND ($2 = '' OR city = $2)
		ORDER BY id
		LIMIT $3 OFFSET $4
	`, q.Region, q.City, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	stations, err := scanStations(rows)
	if err != nil {
		return nil, err
	}

	return &domain.StationPage{
		Stations: stations,
		Total:    total,
		HasMore:  q.Offset+len(stations) < total,
	}, nil
}

// NearRoute calls stations_near_route, which measures to the polyline vertices like
// corridor.StationsNearRoute. A non-positive limit returns every match.
func (r *StationRepo) NearRoute(ctx context.Context, polyline []domain.GeoPoint, radiusKm float64, limit int) ([]domain.ChargingStation, int, error) {
	if len(polyline) < 2 {
		return nil, 0, fmt.Errorf("%w: route needs at least 2 coordinates", domain.ErrInvalidInput)
	}
	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+stationColumns+`, total_count
		FROM stations_near_route($1, $2, $3)
	`, LineStringWKT(polyline), radiusKm*1000, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("stations near route: %w", err)
	}
	defer rows.Close()

	stations := make([]domain.ChargingStation, 0)
	total := 0
	for rows.Next() {
		var s domain.ChargingStation
		var count int64
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Address, &s.City, &s.Region,
			&s.Latitude, &s.Longitude, &s.PowerKW, &s.ConnectorTypes,
			&s.Available, &s.PricePerHour,
			&s.Operator, &s.AccessType, &s.Description,
			&count,
		); err != nil {
			return nil, 0, fmt.Errorf("scan station: %w", err)
		}
		total = int(count)
		stations = append(stations, s.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("stations near route: %w", err)
	}
	return stations, total, nil
}

// UpsertBatch inserts or refreshes many stations using pgx.Batch.
func (r *StationRepo) UpsertBatch(ctx context.Context, stations []domain.ChargingStation) error {
	batch := &pgx.Batch{}
	for _, s := range stations {
		var price *float64
		if s.PricePerHour > 0 {
			price = &s.PricePerHour
		}
		batch.Queue(`
			INSERT INTO stations_irve (id, name, address, city, region, latitude, longitude, location,
			                           power_kw, connector_types, available, price_per_hour,
			                           operator, access_type, description, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, ST_SetSRID(ST_MakePoint($7, $6), 4326)::geography,
			        $8, $9, $10, $11, $12, $13, $14, now())
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, address = EXCLUDED.address, city = EXCLUDED.city,
			    region = EXCLUDED.region, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			    location = EXCLUDED.location, power_kw = EXCLUDED.power_kw,
			    connector_types = EXCLUDED.connector_types, available = EXCLUDED.available,
			    price_per_hour = EXCLUDED.price_per_hour, operator = EXCLUDED.operator,
			    access_type = EXCLUDED.access_type, description = EXCLUDED.description,
			    updated_at = now()
		`, s.ID, s.Name, s.Address, s.City, s.Region, s.Latitude, s.Longitude,
			s.PowerKW, s.ConnectorTypes, s.Available, price,
			s.Operator, s.AccessType, s.Description)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range stations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert station %s: %w", stations[i].ID, err)
		}
	}
	return nil
}

// FetchPage implements ports.StationPager directly on the table.
func (r *StationRepo) FetchPage(ctx context.Context, offset, limit int) (*domain.StationPage, error) {
	return r.List(ctx, domain.StationQuery{Limit: limit, Offset: offset})
}

func scanStations(rows pgx.Rows) ([]domain.ChargingStation, error) {
	defer rows.Close()

	stations := make([]domain.ChargingStation, 0)
	for rows.Next() {
		var s domain.ChargingStation
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Address, &s.City, &s.Region,
			&s.Latitude, &s.Longitude, &s.PowerKW, &s.ConnectorTypes,
			&s.Available, &s.PricePerHour,
			&s.Operator, &s.AccessType, &s.Description,
		); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		if !s.HasLocation() {
			continue
		}
		stations = append(stations, s.Normalize())
	}
	return stations, rows.Err()
}

// LineStringWKT renders the polyline as a WKT LINESTRING in lon/lat order.
func LineStringWKT(polyline []domain.GeoPoint) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, p := range polyline {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}
