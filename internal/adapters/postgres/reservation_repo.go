package postgres

import (
	"context"
	"fmt"

	"github.com/stazy/chargeshare/internal/core/domain"
)

// ReservationRepo implements ports.ReservationRepository with pgx.
type ReservationRepo struct {
	db *DB
}

func NewReservationRepo(db *DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

// Create inserts r and fills its ID and CreatedAt.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	var stationID *string
	if res.StationID != "" {
		stationID = &res.StationID
	}
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO reservations (client_id, station_id, station_name, start_time, end_time,
		                          duration_hours, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id::text, created_at
	`, res.ClientID, stationID, res.StationName, res.StartTime, res.EndTime,
		res.DurationHours, res.Amount, res.Status,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// ListByClient returns the client's reservations, newest first.
func (r *ReservationRepo) ListByClient(ctx context.Context, clientID string) ([]domain.Reservation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, client_id, COALESCE(station_id, ''), station_name, start_time, end_time,
		       duration_hours, amount, status, created_at
		FROM reservations
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID, &res.ClientID, &res.StationID, &res.StationName, &res.StartTime, &res.EndTime,
			&res.DurationHours, &res.Amount, &res.Status, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
