// Package handler provides the HTTP handlers of the CityMove API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/api/response"
	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/routing"
	"github.com/citymove/citymove/pkg/polyline"
)

// RouteFinder returns the first upstream route between two points.
type RouteFinder interface {
	FirstRoute(ctx context.Context, req routing.DirectionsRequest) (*routing.Route, error)
}

// RouteHandler proxies route requests to the upstream routing engine so the
// engine's key stays on the server.
type RouteHandler struct {
	routes RouteFinder
	logger zerolog.Logger
}

// NewRouteHandler creates a RouteHandler. A nil finder means no routing key
// is configured and every request fails with 500.
func NewRouteHandler(routes RouteFinder, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{routes: routes, logger: logger}
}

// ComputeRoute handles POST /api/route/.
func (h *RouteHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.Start == nil || input.Dest == nil {
		var fields []models.FieldError
		if input.Start == nil {
			fields = append(fields, models.FieldError{Field: "start", Message: "required", Code: "REQUIRED"})
		}
		if input.Dest == nil {
			fields = append(fields, models.FieldError{Field: "dest", Message: "required", Code: "REQUIRED"})
		}
		response.BadRequest(w, r, "Missing start or dest", fields)
		return
	}

	start, err := input.Start.LatLng()
	if err != nil {
		response.BadRequest(w, r, "Invalid start coordinates", []models.FieldError{
			{Field: "start", Message: err.Error(), Code: "INVALID"},
		})
		return
	}
	dest, err := input.Dest.LatLng()
	if err != nil {
		response.BadRequest(w, r, "Invalid dest coordinates", []models.FieldError{
			{Field: "dest", Message: err.Error(), Code: "INVALID"},
		})
		return
	}

	mode, err := routing.ParseMode(input.Vehicle)
	if err != nil {
		response.BadRequest(w, r, "Unknown vehicle", []models.FieldError{
			{Field: "vehicle", Message: "must be walking, cycling or driving", Code: "INVALID"},
		})
		return
	}

	if h.routes == nil {
		response.NotConfigured(w, r, "GraphHopper key not configured on server")
		return
	}

	route, err := h.routes.FirstRoute(r.Context(), routing.DirectionsRequest{
		Origin:      geo.Point{Lat: start.Lat, Lon: start.Lng},
		Destination: geo.Point{Lat: dest.Lat, Lon: dest.Lng},
		Mode:        mode,
	})
	if err != nil {
		h.writeRouteError(w, r, err)
		return
	}

	coords := make([][2]float64, 0, len(route.Path))
	for _, p := range route.Path {
		coords = append(coords, [2]float64{p.Lat, p.Lon})
	}

	response.JSON(w, r, http.StatusOK, models.RouteProxyResponse{
		Coords:   coords,
		Duration: route.DurationSeconds,
		Distance: route.DistanceMeters,
		Polyline: polyline.Encode(geo.LineString(route.Path)),
		Vehicle:  string(mode),
	})
}

// writeRouteError maps routing errors to problem responses. Invalid input
// and an empty path are the caller's problem; anything else the upstream
// reported is a bad gateway.
func (h *RouteHandler) writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	var routeErr *routing.Error
	isRouteErr := errors.As(err, &routeErr)

	switch {
	case errors.Is(err, routing.ErrInvalidInput):
		response.BadRequest(w, r, err.Error(), nil)
	case isRouteErr && routeErr.Code == "NO_PATH":
		response.BadRequest(w, r, "No path found", nil)
	case isRouteErr:
		h.logger.Warn().Err(err).
			Str("provider", routeErr.Provider).
			Str("code", routeErr.Code).
			Msg("route proxy upstream failure")
		response.BadGateway(w, r, err.Error())
	default:
		h.logger.Error().Err(err).Msg("route proxy failed")
		response.InternalError(w, r, "failed to compute route")
	}
}
