package handler

import (
	"net/http"
	"time"

	"github.com/citymove/citymove/internal/api/models"
	"github.com/citymove/citymove/internal/api/response"
	"github.com/citymove/citymove/internal/planner"
)

// CitiesHandler serves the city catalogue.
type CitiesHandler struct {
	cities []planner.City
}

// NewCitiesHandler creates a CitiesHandler over cities.
func NewCitiesHandler(cities []planner.City) *CitiesHandler {
	return &CitiesHandler{cities: cities}
}

// ListCities handles GET /v1/cities.
func (h *CitiesHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	out := models.CitiesResponse{Cities: make([]models.City, 0, len(h.cities))}
	for _, c := range h.cities {
		out.Cities = append(out.Cities, models.City{
			Name:   c.Name,
			Center: models.LatLng{Lat: c.Center.Lat, Lng: c.Center.Lon},
			Info:   c.Info,
		})
	}

	response.Cacheable(w, 24*time.Hour)
	response.JSON(w, r, http.StatusOK, out)
}
