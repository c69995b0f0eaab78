package google

// geocodeResponse is the Geocoding API response envelope.
type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         geometry `json:"geometry"`
	PlaceID          string   `json:"place_id,omitempty"`
}

type geometry struct {
	Location *latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocoding API status values.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
)
