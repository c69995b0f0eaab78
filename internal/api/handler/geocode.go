package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/api/response"
	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
)

// PlaceResolver resolves a free-text query to a place.
type PlaceResolver interface {
	Resolve(ctx context.Context, req geocode.Request) (geo.Place, error)
}

// GeocodeHandler exposes the place resolver.
type GeocodeHandler struct {
	resolver PlaceResolver
	logger   zerolog.Logger
}

// NewGeocodeHandler creates a GeocodeHandler.
func NewGeocodeHandler(resolver PlaceResolver, logger zerolog.Logger) *GeocodeHandler {
	return &GeocodeHandler{resolver: resolver, logger: logger}
}

// Geocode handles GET /v1/geocode?q=.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.BadRequest(w, r, "query parameter q is required", []models.FieldError{
			{Field: "q", Message: "required", Code: "REQUIRED"},
		})
		return
	}

	place, err := h.resolver.Resolve(r.Context(), geocode.Request{Text: query})
	switch {
	case err == nil:
	case errors.Is(err, geocode.ErrNoMatchFound):
		response.NotFound(w, r, "Location not found")
		return
	default:
		h.logger.Error().Err(err).Str("query", query).Msg("geocoding failed")
		response.InternalError(w, r, "failed to resolve location")
		return
	}

	response.Cacheable(w, time.Hour)
	response.JSON(w, r, http.StatusOK, models.GeocodeResponse{
		Query: query,
		Label: place.Label,
		Lat:   place.Point.Lat,
		Lng:   place.Point.Lon,
	})
}
