package routing

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"transit_router/pkg/graph"
	"transit_router/pkg/rank"
	"transit_router/pkg/snapshot"
)

// buildSnapshot builds a graph and pairs it with an explicit risk vector
// (indexed by sorted stop id). Passing nil risk computes real scores.
func buildSnapshot(t *testing.T, stops []graph.StopRecord, edges []graph.EdgeRecord, risk []float64) *snapshot.Snapshot {
	t.Helper()
	g, _, err := graph.Build(stops, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if risk == nil {
		risk = rank.Compute(g, rank.Options{}).Scores
	}
	if uint32(len(risk)) != g.NumStops() {
		t.Fatalf("test risk vector len %d for %d stops", len(risk), g.NumStops())
	}
	return &snapshot.Snapshot{Graph: g, Risk: risk, Generation: 1}
}

func triangleSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	stops := []graph.StopRecord{
		{ID: "A", Lat: 0, Lon: 0},
		{ID: "B", Lat: 0, Lon: 1},
		{ID: "C", Lat: 1, Lon: 1},
	}
	edges := []graph.EdgeRecord{
		{From: "A", To: "B", TravelTimeSec: 5, Trips: 10},
		{From: "B", To: "C", TravelTimeSec: 5, Trips: 10},
		{From: "A", To: "C", TravelTimeSec: 20, Trips: 1},
	}
	return buildSnapshot(t, stops, edges, nil)
}

func TestQueryFastestTakesTwoHopPath(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(res.Route.Stops, want) {
		t.Errorf("Stops = %v, want %v", res.Route.Stops, want)
	}
	if res.Route.TotalTimeSec != 10 {
		t.Errorf("TotalTimeSec = %v, want 10 (cheaper than the direct 20s edge)", res.Route.TotalTimeSec)
	}
}

func TestQueryRouteIsWalkable(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	for _, alpha := range []float64{0, 0.25, 0.5, 0.75, 1} {
		res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: alpha})
		if err != nil {
			t.Fatalf("alpha %v: %v", alpha, err)
		}
		stops := res.Route.Stops
		if stops[0] != "A" || stops[len(stops)-1] != "C" {
			t.Errorf("alpha %v: endpoints %v, want A..C", alpha, stops)
		}
		g := snap.Graph
		for i := 0; i+1 < len(stops); i++ {
			u, _ := g.IndexOf(stops[i])
			v, _ := g.IndexOf(stops[i+1])
			if _, ok := g.EdgeBetween(u, v); !ok {
				t.Errorf("alpha %v: consecutive pair %s->%s is not an edge", alpha, stops[i], stops[i+1])
			}
		}
	}
}

func TestQueryTrivialRoute(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "A", Alpha: 0.5, WithReferences: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !reflect.DeepEqual(res.Route.Stops, []string{"A"}) {
		t.Errorf("Stops = %v, want [A]", res.Route.Stops)
	}
	if res.Route.TotalTimeSec != 0 || res.Route.RiskSum != 0 || res.Route.Hops() != 0 {
		t.Errorf("trivial route has nonzero totals: %+v", res.Route)
	}
	if res.Fastest == nil || res.Safest == nil {
		t.Errorf("references missing on trivial route")
	}
}

func TestQueryValidation(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)
	ctx := context.Background()

	for _, alpha := range []float64{-0.1, 1.1} {
		_, err := adv.Query(ctx, snap, Request{Src: "A", Dst: "C", Alpha: alpha})
		if !errors.Is(err, ErrBadAlpha) {
			t.Errorf("alpha %v: err = %v, want ErrBadAlpha", alpha, err)
		}
	}

	_, err := adv.Query(ctx, snap, Request{Src: "A", Dst: "D", Alpha: 0.5})
	if !errors.Is(err, ErrUnknownStop) {
		t.Errorf("unknown dst: err = %v, want ErrUnknownStop", err)
	}
	_, err = adv.Query(ctx, snap, Request{Src: "D", Dst: "A", Alpha: 0.5})
	if !errors.Is(err, ErrUnknownStop) {
		t.Errorf("unknown src: err = %v, want ErrUnknownStop", err)
	}
}

func TestQueryIsolatedStopNotFound(t *testing.T) {
	stops := []graph.StopRecord{{ID: "A"}, {ID: "B"}, {ID: "D"}}
	edges := []graph.EdgeRecord{{From: "A", To: "B", TravelTimeSec: 5, Trips: 1}}
	snap := buildSnapshot(t, stops, edges, nil)
	adv := NewAdvisor(0)

	_, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "D", Alpha: 0.5})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute for isolated stop", err)
	}
}

func TestQueryAvoidsRiskyHub(t *testing.T) {
	// Two parallel paths S -> X -> T and S -> Y -> T with equal times, but X
	// carries nearly all risk. Low alpha must route around it.
	stops := []graph.StopRecord{{ID: "S"}, {ID: "T"}, {ID: "X"}, {ID: "Y"}}
	edges := []graph.EdgeRecord{
		{From: "S", To: "X", TravelTimeSec: 10, Trips: 1},
		{From: "X", To: "T", TravelTimeSec: 10, Trips: 1},
		{From: "S", To: "Y", TravelTimeSec: 15, Trips: 1},
		{From: "Y", To: "T", TravelTimeSec: 15, Trips: 1},
	}
	// Index order (sorted ids): S=0, T=1, X=2, Y=3.
	risk := []float64{0.05, 0.05, 0.8, 0.1}
	snap := buildSnapshot(t, stops, edges, risk)
	adv := NewAdvisor(0)

	fast, err := adv.Query(context.Background(), snap, Request{Src: "S", Dst: "T", Alpha: 1})
	if err != nil {
		t.Fatalf("alpha=1: %v", err)
	}
	if !reflect.DeepEqual(fast.Route.Stops, []string{"S", "X", "T"}) {
		t.Errorf("alpha=1 Stops = %v, want via X", fast.Route.Stops)
	}

	safe, err := adv.Query(context.Background(), snap, Request{Src: "S", Dst: "T", Alpha: 0})
	if err != nil {
		t.Fatalf("alpha=0: %v", err)
	}
	if !reflect.DeepEqual(safe.Route.Stops, []string{"S", "Y", "T"}) {
		t.Errorf("alpha=0 Stops = %v, want via Y", safe.Route.Stops)
	}
}

func TestQueryMonotonicExtremes(t *testing.T) {
	stops := []graph.StopRecord{{ID: "S"}, {ID: "T"}, {ID: "X"}, {ID: "Y"}, {ID: "Z"}}
	edges := []graph.EdgeRecord{
		{From: "S", To: "X", TravelTimeSec: 10, Trips: 9},
		{From: "X", To: "T", TravelTimeSec: 10, Trips: 9},
		{From: "S", To: "Y", TravelTimeSec: 20, Trips: 2},
		{From: "Y", To: "T", TravelTimeSec: 25, Trips: 2},
		{From: "S", To: "Z", TravelTimeSec: 18, Trips: 1},
		{From: "Z", To: "T", TravelTimeSec: 21, Trips: 1},
	}
	snap := buildSnapshot(t, stops, edges, nil)
	adv := NewAdvisor(0)
	ctx := context.Background()

	fastest, err := adv.Query(ctx, snap, Request{Src: "S", Dst: "T", Alpha: 1})
	if err != nil {
		t.Fatalf("alpha=1: %v", err)
	}
	safest, err := adv.Query(ctx, snap, Request{Src: "S", Dst: "T", Alpha: 0})
	if err != nil {
		t.Fatalf("alpha=0: %v", err)
	}

	for _, alpha := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1} {
		res, err := adv.Query(ctx, snap, Request{Src: "S", Dst: "T", Alpha: alpha})
		if err != nil {
			t.Fatalf("alpha %v: %v", alpha, err)
		}
		if fastest.Route.TotalTimeSec > res.Route.TotalTimeSec+1e-9 {
			t.Errorf("alpha=1 time %v > alpha=%v time %v", fastest.Route.TotalTimeSec, alpha, res.Route.TotalTimeSec)
		}
		if safest.Route.RiskSum > res.Route.RiskSum+1e-9 {
			t.Errorf("alpha=0 risk %v > alpha=%v risk %v", safest.Route.RiskSum, alpha, res.Route.RiskSum)
		}
	}
}

func TestQueryTieBreakFewerHops(t *testing.T) {
	// Direct edge and a two-hop detour with identical total time; risk zeroed
	// so blended costs tie exactly. Fewer hops must win.
	stops := []graph.StopRecord{{ID: "A"}, {ID: "M"}, {ID: "Z"}}
	edges := []graph.EdgeRecord{
		{From: "A", To: "Z", TravelTimeSec: 10, Trips: 1},
		{From: "A", To: "M", TravelTimeSec: 5, Trips: 1},
		{From: "M", To: "Z", TravelTimeSec: 5, Trips: 1},
	}
	snap := buildSnapshot(t, stops, edges, []float64{0, 0, 0})
	adv := NewAdvisor(0)

	res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "Z", Alpha: 0.5})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !reflect.DeepEqual(res.Route.Stops, []string{"A", "Z"}) {
		t.Errorf("Stops = %v, want direct [A Z]", res.Route.Stops)
	}
}

func TestQueryTieBreakLexOrder(t *testing.T) {
	// Two symmetric two-hop paths with identical cost and hop count; the
	// lexicographically smaller stop sequence (via B) must win.
	stops := []graph.StopRecord{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "Z"}}
	edges := []graph.EdgeRecord{
		{From: "A", To: "B", TravelTimeSec: 5, Trips: 1},
		{From: "B", To: "Z", TravelTimeSec: 5, Trips: 1},
		{From: "A", To: "C", TravelTimeSec: 5, Trips: 1},
		{From: "C", To: "Z", TravelTimeSec: 5, Trips: 1},
	}
	snap := buildSnapshot(t, stops, edges, []float64{0.1, 0.2, 0.2, 0.1})
	adv := NewAdvisor(0)

	for _, alpha := range []float64{0, 0.5, 1} {
		res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "Z", Alpha: alpha})
		if err != nil {
			t.Fatalf("alpha %v: %v", alpha, err)
		}
		if !reflect.DeepEqual(res.Route.Stops, []string{"A", "B", "Z"}) {
			t.Errorf("alpha %v: Stops = %v, want [A B Z]", alpha, res.Route.Stops)
		}
	}
}

func TestQueryDeterministic(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	first, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 0.37})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 0.37})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !reflect.DeepEqual(first.Route.Stops, again.Route.Stops) {
			t.Fatalf("run %d: %v != %v", i, again.Route.Stops, first.Route.Stops)
		}
	}
}

func TestQueryWithReferences(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	res, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 0.5, WithReferences: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Fastest == nil || res.Fastest.Alpha != 1 {
		t.Fatalf("Fastest = %+v, want alpha=1 route", res.Fastest)
	}
	if res.Safest == nil || res.Safest.Alpha != 0 {
		t.Fatalf("Safest = %+v, want alpha=0 route", res.Safest)
	}
	if res.Fastest.TotalTimeSec > res.Safest.TotalTimeSec+1e-9 {
		t.Errorf("fastest time %v > safest time %v", res.Fastest.TotalTimeSec, res.Safest.TotalTimeSec)
	}
}

func TestQueryDeadline(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := adv.Query(ctx, snap, Request{Src: "A", Dst: "C", Alpha: 0.5})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestQueryCorruptSnapshot(t *testing.T) {
	snap := triangleSnapshot(t)
	snap.Risk = snap.Risk[:1] // wrong length

	adv := NewAdvisor(0)
	_, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 0.5})
	if !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("err = %v, want ErrCorruptSnapshot", err)
	}
}

func TestQueryBoundedConcurrency(t *testing.T) {
	snap := triangleSnapshot(t)
	adv := NewAdvisor(2)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			_, err := adv.Query(context.Background(), snap, Request{Src: "A", Dst: "C", Alpha: 0.5})
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent query: %v", err)
		}
	}
}
