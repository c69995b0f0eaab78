package models

// GeocodeResponse is the body of GET /v1/geocode.
type GeocodeResponse struct {
	Query string  `json:"query"`
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// City is an entry of GET /v1/cities.
type City struct {
	Name   string `json:"name"`
	Center LatLng `json:"center"`
	Info   string `json:"info"`
}

// CitiesResponse is the body of GET /v1/cities.
type CitiesResponse struct {
	Cities []City `json:"cities"`
}
