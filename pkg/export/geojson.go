// Package export translates core values into GeoJSON for the dashboard
// boundary. Stop coordinates and route stop-id sequences pass through
// verbatim; geometry construction happens here, never in the core types.
package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"transit_router/pkg/routing"
	"transit_router/pkg/snapshot"
)

// StopCollection renders every stop as a point feature. When withRisk is set
// the snapshot's risk score is attached per feature; clustering and heatmap
// consumers can ignore it.
func StopCollection(snap *snapshot.Snapshot, withRisk bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, s := range snap.Graph.Stops {
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		f.ID = s.ID
		f.Properties["stop_id"] = s.ID
		f.Properties["name"] = s.Name
		if withRisk {
			f.Properties["risk"] = snap.Risk[i]
		}
		fc.Append(f)
	}
	return fc
}

// RouteFeature renders a route as a line through its stop coordinates, with
// the ordered stop-id sequence and totals as properties.
func RouteFeature(snap *snapshot.Snapshot, rt *routing.Route) (*geojson.Feature, error) {
	line := make(orb.LineString, 0, len(rt.Stops))
	for _, id := range rt.Stops {
		idx, ok := snap.Graph.IndexOf(id)
		if !ok {
			return nil, fmt.Errorf("route stop %q not in snapshot", id)
		}
		s := snap.Graph.Stops[idx]
		line = append(line, orb.Point{s.Lon, s.Lat})
	}

	f := geojson.NewFeature(line)
	f.Properties["stop_ids"] = rt.Stops
	f.Properties["total_time_sec"] = rt.TotalTimeSec
	f.Properties["risk_sum"] = rt.RiskSum
	f.Properties["alpha"] = rt.Alpha
	return f, nil
}
