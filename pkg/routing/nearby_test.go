package routing

import (
	"errors"
	"testing"

	"transit_router/pkg/graph"
)

func TestHubsWithin(t *testing.T) {
	// A -> B -> C -> D chain; risks descend along the chain.
	stops := []graph.StopRecord{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	edges := []graph.EdgeRecord{
		{From: "A", To: "B", TravelTimeSec: 5, Trips: 1},
		{From: "B", To: "C", TravelTimeSec: 5, Trips: 1},
		{From: "C", To: "D", TravelTimeSec: 5, Trips: 1},
	}
	snap := buildSnapshot(t, stops, edges, []float64{0.1, 0.5, 0.3, 0.1})

	hubs, err := HubsWithin(snap, "A", 2, 0.25)
	if err != nil {
		t.Fatalf("HubsWithin: %v", err)
	}
	// D is 3 hops out, A is the origin, so only B and C qualify.
	if len(hubs) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(hubs), hubs)
	}
	if hubs[0].StopID != "B" || hubs[0].Hops != 1 {
		t.Errorf("hubs[0] = %+v, want B at 1 hop (highest risk first)", hubs[0])
	}
	if hubs[1].StopID != "C" || hubs[1].Hops != 2 {
		t.Errorf("hubs[1] = %+v, want C at 2 hops", hubs[1])
	}
}

func TestHubsWithinThresholdExcludes(t *testing.T) {
	stops := []graph.StopRecord{{ID: "A"}, {ID: "B"}}
	edges := []graph.EdgeRecord{{From: "A", To: "B", TravelTimeSec: 5, Trips: 1}}
	snap := buildSnapshot(t, stops, edges, []float64{0.5, 0.1})

	hubs, err := HubsWithin(snap, "A", 3, 0.25)
	if err != nil {
		t.Fatalf("HubsWithin: %v", err)
	}
	if len(hubs) != 0 {
		t.Errorf("hubs = %+v, want none above threshold", hubs)
	}
}

func TestHubsWithinUnknownStop(t *testing.T) {
	stops := []graph.StopRecord{{ID: "A"}}
	snap := buildSnapshot(t, stops, nil, []float64{0.1})

	_, err := HubsWithin(snap, "Z", 2, 0)
	if !errors.Is(err, ErrUnknownStop) {
		t.Fatalf("err = %v, want ErrUnknownStop", err)
	}
}
