package api

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Src               string   `json:"src"`
	Dst               string   `json:"dst"`
	Alpha             *float64 `json:"alpha,omitempty"` // nil = server default
	IncludeReferences bool     `json:"include_references,omitempty"`
}

// RouteJSON represents one advised route in a response.
type RouteJSON struct {
	Stops        []string `json:"stops"`
	TotalTimeSec float64  `json:"total_time_sec"`
	RiskSum      float64  `json:"risk_sum"`
	Alpha        float64  `json:"alpha"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	Route      RouteJSON  `json:"route"`
	Fastest    *RouteJSON `json:"fastest,omitempty"`
	Safest     *RouteJSON `json:"safest,omitempty"`
	Generation uint64     `json:"generation"`
}

// RiskEntry is one stop's score in GET /api/v1/risk.
type RiskEntry struct {
	StopID string  `json:"stop_id"`
	Score  float64 `json:"score"`
}

// RiskResponse is the JSON response for GET /api/v1/risk.
type RiskResponse struct {
	Generation uint64      `json:"generation"`
	Scores     []RiskEntry `json:"scores"`
}

// NearestResponse is the JSON response for GET /api/v1/nearest.
type NearestResponse struct {
	StopID     string  `json:"stop_id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistMeters float64 `json:"dist_meters"`
}

// HubJSON is one high-risk stop in GET /api/v1/hubs.
type HubJSON struct {
	StopID string  `json:"stop_id"`
	Risk   float64 `json:"risk"`
	Hops   int     `json:"hops"`
}

// RecomputeRequest optionally overrides rank parameters for POST /api/v1/recompute.
type RecomputeRequest struct {
	Damping       *float64 `json:"damping,omitempty"`
	Epsilon       *float64 `json:"epsilon,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
}

// RecomputeResponse reports the newly published generation.
type RecomputeResponse struct {
	Generation uint64 `json:"generation"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Generation       uint64 `json:"generation"`
	NumStops         uint32 `json:"num_stops"`
	NumEdges         uint32 `json:"num_edges"`
	Components       int    `json:"components"`
	LargestComponent uint32 `json:"largest_component"`
	IsolatedStops    int    `json:"isolated_stops"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
