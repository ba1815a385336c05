package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/ports"
)

// ReservationRequest is the input of ReservationService.Create.
type ReservationRequest struct {
	StationID   string
	StationName string
	Start       *time.Time
	Hours       float64
	Amount      float64
}

// ReservationService books charging stations.
type ReservationService struct {
	reservations ports.ReservationRepository
	publisher    ports.EventPublisher
}

// NewReservationService creates a new ReservationService. publisher may be nil.
func NewReservationService(reservations ports.ReservationRepository, publisher ports.EventPublisher) *ReservationService {
	return &ReservationService{reservations: reservations, publisher: publisher}
}

// Create stores a confirmed reservation. The end time is start + hours when both
// are known.
func (s *ReservationService) Create(ctx context.Context, clientID string, req ReservationRequest) (*domain.Reservation, error) {
	if err := requireUser(clientID); err != nil {
		return nil, err
	}
	if req.StationName == "" {
		return nil, fmt.Errorf("%w: station name is required", domain.ErrInvalidInput)
	}
	if req.Hours < 0 || req.Amount < 0 {
		return nil, fmt.Errorf("%w: hours and amount must not be negative", domain.ErrInvalidInput)
	}

	r := &domain.Reservation{
		ClientID:    clientID,
		StationID:   req.StationID,
		StationName: req.StationName,
		StartTime:   req.Start,
		Amount:      req.Amount,
		Status:      domain.ReservationConfirmed,
	}
	if req.Hours > 0 {
		h := req.Hours
		r.DurationHours = &h
		if req.Start != nil {
			end := req.Start.Add(time.Duration(h * float64(time.Hour)))
			r.EndTime = &end
		}
	}

	if err := s.reservations.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	// Best-effort; the reservation is already stored.
	if s.publisher != nil {
		if err := s.publisher.PublishReservationCreated(ctx, r); err != nil {
			slog.Warn("publish reservation created failed", "reservation_id", r.ID, "error", err)
		}
	}
	return r, nil
}

// List returns the client's reservations, newest first.
func (s *ReservationService) List(ctx context.Context, clientID string) ([]domain.Reservation, error) {
	if err := requireUser(clientID); err != nil {
		return nil, err
	}
	return s.reservations.ListByClient(ctx, clientID)
}
