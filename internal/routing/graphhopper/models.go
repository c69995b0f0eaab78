package graphhopper

// routeResponse is the GraphHopper Routing API response with points_encoded=false.
type routeResponse struct {
	Paths []ghPath   `json:"paths"`
	Info  *routeInfo `json:"info,omitempty"`
}

// ghPath is one route alternative.
type ghPath struct {
	Distance float64    `json:"distance"` // meters
	Time     float64    `json:"time"`     // milliseconds
	BBox     []float64  `json:"bbox,omitempty"`
	Points   lineString `json:"points"`
}

// lineString is a GeoJSON geometry with [lng, lat] coordinates.
type lineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// routeInfo carries attribution and timing metadata.
type routeInfo struct {
	Copyrights []string `json:"copyrights,omitempty"`
	Took       int      `json:"took,omitempty"`
}

// errorResponse is the body of a non-200 reply.
type errorResponse struct {
	Message string `json:"message"`
	Hints   []struct {
		Message    string `json:"message"`
		Details    string `json:"details,omitempty"`
		PointIndex *int   `json:"point_index,omitempty"`
	} `json:"hints,omitempty"`
}
