package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/filter"
	"github.com/stazy/chargeshare/internal/core/mapview"
	"github.com/stazy/chargeshare/internal/core/session"
	"github.com/stazy/chargeshare/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is sent by the client.
//
//	{"action":"plan","start":"Paris","end":"Lyon","avoidTolls":true,"radiusKm":15}
//	{"action":"clear"}
//	{"action":"filters","filters":{"availableOnly":true,"minPower":50,"maxPrice":10}}
//	{"action":"refresh"}
type wsMessage struct {
	Action        string       `json:"action"`
	Start         string       `json:"start"`
	End           string       `json:"end"`
	AvoidTolls    bool         `json:"avoidTolls"`
	AvoidHighways bool         `json:"avoidHighways"`
	RadiusKm      float64      `json:"radiusKm"`
	Filters       *filtersBody `json:"filters"`
}

// wsEvent is pushed to the client.
type wsEvent struct {
	Type    string                     `json:"type"` // session | markers | error
	Session *session.RouteSession      `json:"session,omitempty"`
	Markers []mapview.Marker           `json:"markers,omitempty"`
	Diff    *mapview.Diff              `json:"diff,omitempty"`
	Counts  map[domain.DisplayTier]int `json:"counts,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// messageWriter is the write side of a websocket connection.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsClient is the map page state of one connection.
type wsClient struct {
	deps    *Dependencies
	conn    messageWriter
	tracker *session.Tracker
	view    *mapview.View

	writeMu sync.Mutex
	wg      sync.WaitGroup // in-flight plans

	mu      sync.Mutex
	filters domain.FilterState
}

func (w *wsClient) send(ev wsEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsClient) sendError(msg string) {
	_ = w.send(wsEvent{Type: "error", Error: msg})
}

func (w *wsClient) filterState() domain.FilterState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filters
}

func (w *wsClient) setFilters(st domain.FilterState) {
	w.mu.Lock()
	w.filters = st
	w.mu.Unlock()
}

// pushMarkers reconciles the view with the catalog, the active route and the filters.
func (w *wsClient) pushMarkers() {
	var catalogStations []domain.ChargingStation
	if w.deps.Catalog != nil {
		catalogStations = w.deps.Catalog.Snapshot().Stations
	}
	displayed := displayedStations(catalogStations, w.tracker.Current(), w.filterState())
	diff := w.view.Upsert(displayed)
	_ = w.send(wsEvent{
		Type:    "markers",
		Markers: w.view.Snapshot(),
		Diff:    &diff,
		Counts:  filter.Counts(displayed),
	})
}

// clearRoute drops the active route and resends every marker from scratch.
func (w *wsClient) clearRoute() {
	w.tracker.Clear()
	w.view.Clear()
	w.pushSession()
	w.pushMarkers()
}

func (w *wsClient) pushSession() {
	s := w.tracker.Current()
	_ = w.send(wsEvent{Type: "session", Session: &s})
}

// plan runs a route calculation. A calculation superseded by a later plan or clear
// is dropped without notifying the client.
func (w *wsClient) plan(parent context.Context, m wsMessage) {
	ctx, tok := w.tracker.Begin(parent)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		sess, err := w.deps.Planner.Plan(ctx, planRequest{
			Start:         m.Start,
			End:           m.End,
			AvoidTolls:    m.AvoidTolls,
			AvoidHighways: m.AvoidHighways,
			RadiusKm:      m.RadiusKm,
		}.toPlan())
		metrics.RoutePlans.WithLabelValues(planOutcome(err)).Inc()
		if err != nil {
			w.tracker.Abandon(tok)
			if errors.Is(err, context.Canceled) {
				return
			}
			w.sendError(err.Error())
			return
		}
		if !w.tracker.Commit(tok, sess) {
			return
		}
		w.pushSession()
		w.pushMarkers()
	}()
}

// displayedStations merges corridor stations missing from the catalog into it and
// applies the filters, tagging on-route stations.
func displayedStations(catalogStations []domain.ChargingStation, sess session.RouteSession, state domain.FilterState) []domain.DisplayStation {
	all := catalogStations
	if sess.Active() {
		seen := make(map[string]bool, len(catalogStations))
		for _, s := range catalogStations {
			seen[s.ID] = true
		}
		var extra []domain.ChargingStation
		for _, s := range sess.Stations() {
			if !seen[s.ID] {
				extra = append(extra, s)
			}
		}
		if len(extra) > 0 {
			all = append(append(make([]domain.ChargingStation, 0, len(catalogStations)+len(extra)), catalogStations...), extra...)
		}
	}
	return filter.Apply(all, sess.Membership(), state)
}

// WebSocketHandler serves the live map: the client plans routes and changes
// filters, the server pushes the active session and marker updates.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		defer c.Close()

		remote := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remote)

		ctx, cancel := context.WithCancel(context.Background())
		w := &wsClient{
			deps:    deps,
			conn:    c,
			tracker: session.NewTracker(),
			view:    mapview.New(),
			filters: domain.DefaultFilterState(),
		}
		defer func() {
			cancel()
			w.tracker.Close()
			w.wg.Wait()
			slog.Info("ws client disconnected", "remote", remote)
		}()

		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					w.writeMu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					w.writeMu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		w.pushSession()
		w.pushMarkers()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				w.sendError("invalid JSON")
				continue
			}

			switch m.Action {
			case "plan":
				w.plan(ctx, m)
			case "clear":
				w.clearRoute()
			case "filters":
				w.setFilters(m.Filters.state())
				w.pushMarkers()
			case "refresh":
				w.pushMarkers()
			default:
				w.sendError("unknown action: " + m.Action)
			}
		}
	}
}
