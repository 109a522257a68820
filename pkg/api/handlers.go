package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"transit_router/pkg/export"
	"transit_router/pkg/graph"
	"transit_router/pkg/rank"
	"transit_router/pkg/routing"
	"transit_router/pkg/snapshot"
	"transit_router/pkg/spatial"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	pub          *snapshot.Publisher
	adv          *routing.Advisor
	index        *spatial.Index
	rankOpts     rank.Options
	defaultAlpha float64
	queryTimeout time.Duration
}

// NewHandlers creates handlers over a publisher and advisor. The spatial
// index must be built over the same graph the publisher serves.
func NewHandlers(pub *snapshot.Publisher, adv *routing.Advisor, index *spatial.Index,
	rankOpts rank.Options, defaultAlpha float64, queryTimeout time.Duration) *Handlers {
	return &Handlers{
		pub:          pub,
		adv:          adv,
		index:        index,
		rankOpts:     rankOpts,
		defaultAlpha: defaultAlpha,
		queryTimeout: queryTimeout,
	}
}

func (h *Handlers) currentSnapshot(w http.ResponseWriter) *snapshot.Snapshot {
	snap := h.pub.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no_snapshot", "")
	}
	return snap
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if req.Src == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "src")
		return
	}
	if req.Dst == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "dst")
		return
	}
	alpha := h.defaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	snap := h.currentSnapshot(w)
	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	res, err := h.adv.Query(ctx, snap, routing.Request{
		Src:            req.Src,
		Dst:            req.Dst,
		Alpha:          alpha,
		WithReferences: req.IncludeReferences,
	})
	if err != nil {
		writeRouteError(w, err)
		return
	}

	resp := RouteResponse{
		Route:      toRouteJSON(res.Route),
		Generation: snap.Generation,
	}
	if res.Fastest != nil {
		f := toRouteJSON(res.Fastest)
		resp.Fastest = &f
	}
	if res.Safest != nil {
		s := toRouteJSON(res.Safest)
		resp.Safest = &s
	}
	writeJSON(w, resp)
}

func toRouteJSON(rt *routing.Route) RouteJSON {
	return RouteJSON{
		Stops:        rt.Stops,
		TotalTimeSec: rt.TotalTimeSec,
		RiskSum:      rt.RiskSum,
		Alpha:        rt.Alpha,
	}
}

func writeRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrBadAlpha):
		writeError(w, http.StatusBadRequest, "invalid_alpha", "alpha")
	case errors.Is(err, routing.ErrUnknownStop):
		writeError(w, http.StatusBadRequest, "unknown_stop", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

// HandleStops handles GET /api/v1/stops. With ?risk=true each feature
// carries its score; without, the payload is purely geographic.
func (h *Handlers) HandleStops(w http.ResponseWriter, r *http.Request) {
	snap := h.currentSnapshot(w)
	if snap == nil {
		return
	}
	withRisk := r.URL.Query().Get("risk") == "true"
	writeJSON(w, export.StopCollection(snap, withRisk))
}

// HandleRisk handles GET /api/v1/risk.
func (h *Handlers) HandleRisk(w http.ResponseWriter, r *http.Request) {
	snap := h.currentSnapshot(w)
	if snap == nil {
		return
	}
	resp := RiskResponse{
		Generation: snap.Generation,
		Scores:     make([]RiskEntry, len(snap.Graph.Stops)),
	}
	for i, s := range snap.Graph.Stops {
		resp.Scores[i] = RiskEntry{StopID: s.ID, Score: snap.Risk[i]}
	}
	writeJSON(w, resp)
}

// HandleNearest handles GET /api/v1/nearest?lat=..&lon=..
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat")
		return
	}
	if errLon != nil || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lon")
		return
	}

	m, ok := h.index.Nearest(lat, lon)
	if !ok {
		writeError(w, http.StatusNotFound, "no_stops_indexed", "")
		return
	}
	writeJSON(w, NearestResponse{
		StopID:     m.Stop.ID,
		Name:       m.Stop.Name,
		Lat:        m.Stop.Lat,
		Lon:        m.Stop.Lon,
		DistMeters: m.DistMeters,
	})
}

// HandleHubs handles GET /api/v1/hubs?src=..&hops=..&min_risk=..
func (h *Handlers) HandleHubs(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "src")
		return
	}
	hops, err := strconv.Atoi(r.URL.Query().Get("hops"))
	if err != nil || hops < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "hops")
		return
	}
	minRisk := 0.0
	if v := r.URL.Query().Get("min_risk"); v != "" {
		if minRisk, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "min_risk")
			return
		}
	}

	snap := h.currentSnapshot(w)
	if snap == nil {
		return
	}
	hubs, err := routing.HubsWithin(snap, src, hops, minRisk)
	if err != nil {
		if errors.Is(err, routing.ErrUnknownStop) {
			writeError(w, http.StatusBadRequest, "unknown_stop", "src")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	out := make([]HubJSON, len(hubs))
	for i, hub := range hubs {
		out[i] = HubJSON{StopID: hub.StopID, Risk: hub.Risk, Hops: hub.Hops}
	}
	writeJSON(w, out)
}

// HandleRecompute handles POST /api/v1/recompute. The request body may
// override rank parameters; the graph is reused as-is.
func (h *Handlers) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	opts := h.rankOpts
	if r.ContentLength > 0 {
		var req RecomputeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "")
			return
		}
		if req.Damping != nil {
			if *req.Damping <= 0 || *req.Damping >= 1 {
				writeError(w, http.StatusBadRequest, "invalid_request", "damping")
				return
			}
			opts.Damping = *req.Damping
		}
		if req.Epsilon != nil {
			opts.Epsilon = *req.Epsilon
		}
		if req.MaxIterations != nil {
			opts.MaxIterations = *req.MaxIterations
		}
	}

	snap, err := h.pub.RecomputeRisk(opts)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "no_snapshot", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	writeJSON(w, RecomputeResponse{Generation: snap.Generation})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	snap := h.currentSnapshot(w)
	if snap == nil {
		return
	}
	stats := graph.Components(snap.Graph)
	writeJSON(w, StatsResponse{
		Generation:       snap.Generation,
		NumStops:         snap.Graph.NumStops(),
		NumEdges:         snap.Graph.NumEdges(),
		Components:       stats.Components,
		LargestComponent: stats.LargestSize,
		IsolatedStops:    stats.IsolatedStops,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
