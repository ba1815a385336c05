package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/usecases"
)

// HeaderUserID carries the authenticated user id, set by the gateway.
const HeaderUserID = "X-User-ID"

// RequireUser rejects requests without an authenticated user.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := strings.TrimSpace(c.Get(HeaderUserID))
		if uid == "" {
			return errUnauthorized(c, "missing "+HeaderUserID+" header")
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

type cartResponse struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
}

func newCartResponse(deps *Dependencies, cart *domain.Cart) cartResponse {
	return cartResponse{Items: cart.Items, Total: deps.Carts.Total(cart)}
}

// GetCartHandler returns the user's cart.
func GetCartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cart, err := deps.Carts.Get(c.UserContext(), userID(c))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(newCartResponse(deps, cart))
	}
}

type cartItemRequest struct {
	StationID   string  `json:"stationId" validate:"max=200"`
	StationName string  `json:"stationName" validate:"required,max=200"`
	Date        string  `json:"date" validate:"max=64"`
	Hours       float64 `json:"hours" validate:"gte=0,lte=72"`
	Amount      float64 `json:"amount" validate:"gte=0"`
}

// AddCartItemHandler appends a pending booking to the cart.
func AddCartItemHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req cartItemRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}

		cart, err := deps.Carts.Add(c.UserContext(), userID(c), domain.CartItem{
			StationID:   req.StationID,
			StationName: strings.TrimSpace(req.StationName),
			Date:        req.Date,
			Hours:       req.Hours,
			Amount:      req.Amount,
		})
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(newCartResponse(deps, cart))
	}
}

// RemoveCartItemHandler drops one item from the cart.
func RemoveCartItemHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cart, err := deps.Carts.Remove(c.UserContext(), userID(c), c.Params("itemId"))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(newCartResponse(deps, cart))
	}
}

// ClearCartHandler empties the cart.
func ClearCartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cart, err := deps.Carts.Clear(c.UserContext(), userID(c))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(newCartResponse(deps, cart))
	}
}

// GetProfileHandler returns the user's profile.
func GetProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Profiles.Get(c.UserContext(), userID(c))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(p)
	}
}

type profileRequest struct {
	Email     *string  `json:"email" validate:"omitempty,email,max=254"`
	Name      *string  `json:"name" validate:"omitempty,max=200"`
	Favorites []string `json:"favorites" validate:"omitempty,dive,max=200"`
}

// UpdateProfileHandler merges the given fields into the user's profile.
// PUT /v1/profile {"name":"Alice","favorites":["FR-ION-0001"]}
func UpdateProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req profileRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		p, err := deps.Profiles.Update(c.UserContext(), userID(c), domain.ProfileUpdate{
			Email:     req.Email,
			Name:      req.Name,
			Favorites: req.Favorites,
		})
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(p)
	}
}

type reservationRequest struct {
	StationID   string  `json:"stationId" validate:"max=200"`
	StationName string  `json:"stationName" validate:"required,max=200"`
	Date        string  `json:"date" validate:"max=64"`
	Hours       float64 `json:"hours" validate:"gte=0,lte=72"`
	Amount      float64 `json:"amount" validate:"gte=0"`
}

var reservationDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseReservationDate accepts RFC 3339 timestamps and the shorter forms sent by
// date pickers. An empty value means no start time.
func parseReservationDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range reservationDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// CreateReservationHandler books a station.
func CreateReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reservationRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		start, ok := parseReservationDate(req.Date)
		if !ok {
			return errBadRequest(c, "date must be an ISO 8601 date or timestamp")
		}

		r, err := deps.Reservations.Create(c.UserContext(), userID(c), usecases.ReservationRequest{
			StationID:   req.StationID,
			StationName: strings.TrimSpace(req.StationName),
			Start:       start,
			Hours:       req.Hours,
			Amount:      req.Amount,
		})
		if err != nil {
			return mapError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

// ListReservationsHandler returns the user's reservations, newest first.
func ListReservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := deps.Reservations.List(c.UserContext(), userID(c))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(fiber.Map{"reservations": list})
	}
}
