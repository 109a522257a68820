package graph

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrSelfLoop is returned when an edge record points a stop at itself.
var ErrSelfLoop = errors.New("self-loop edge")

// ErrBadTravelTime is returned when an edge record carries a non-positive
// travel time.
var ErrBadTravelTime = errors.New("travel time must be positive")

// StopRecord is one raw stop observation.
type StopRecord struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// EdgeRecord is one raw directed connection observation. Multiple records for
// the same ordered (From, To) pair are aggregated during Build.
type EdgeRecord struct {
	From          string
	To            string
	TravelTimeSec float64
	Trips         uint32
}

// BuildReport counts the recoverable corrections applied during a build.
type BuildReport struct {
	DuplicateStops int // later record overwrote an earlier one with the same id
	DroppedEdges   int // edge records referencing an unknown stop id
}

// Build creates an immutable CSR Graph from raw stop and edge records.
//
// Duplicate stop ids are resolved last-write-wins and counted. Edge records
// referencing unknown stops are dropped and counted. Edges sharing an ordered
// (from, to) pair are aggregated: trip counts summed, travel time combined as
// a trip-count-weighted mean (arithmetic mean when all observations carry
// zero trips). Self-loops and non-positive travel times fail the build.
func Build(stops []StopRecord, edges []EdgeRecord) (*Graph, BuildReport, error) {
	var report BuildReport

	// Deduplicate stops, last write wins.
	byID := make(map[string]StopRecord, len(stops))
	for _, s := range stops {
		if _, seen := byID[s.ID]; seen {
			report.DuplicateStops++
			log.Printf("graph: duplicate stop %q, keeping later record", s.ID)
		}
		byID[s.ID] = s
	}

	// Deterministic index assignment: sort ids.
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]uint32, len(ids))
	stopList := make([]Stop, len(ids))
	for i, id := range ids {
		r := byID[id]
		index[id] = uint32(i)
		stopList[i] = Stop{ID: r.ID, Name: r.Name, Lat: r.Lat, Lon: r.Lon}
	}

	// Aggregate edges per ordered (from, to) pair.
	type pairKey struct{ from, to uint32 }
	type agg struct {
		trips       uint64
		weightedSum float64 // sum(time * trips)
		plainSum    float64 // sum(time)
		count       uint32
	}
	aggs := make(map[pairKey]*agg)
	var pairs []pairKey // insertion order, re-sorted below

	for _, e := range edges {
		if e.From == e.To {
			return nil, report, fmt.Errorf("edge %s->%s: %w", e.From, e.To, ErrSelfLoop)
		}
		if e.TravelTimeSec <= 0 {
			return nil, report, fmt.Errorf("edge %s->%s: %w", e.From, e.To, ErrBadTravelTime)
		}
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if !okFrom || !okTo {
			report.DroppedEdges++
			continue
		}
		k := pairKey{from, to}
		a, ok := aggs[k]
		if !ok {
			a = &agg{}
			aggs[k] = a
			pairs = append(pairs, k)
		}
		a.trips += uint64(e.Trips)
		a.weightedSum += e.TravelTimeSec * float64(e.Trips)
		a.plainSum += e.TravelTimeSec
		a.count++
	}

	if report.DroppedEdges > 0 {
		log.Printf("graph: dropped %d edge record(s) referencing unknown stops", report.DroppedEdges)
	}

	// CSR order: by (from, to).
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].from != pairs[j].from {
			return pairs[i].from < pairs[j].from
		}
		return pairs[i].to < pairs[j].to
	})

	numStops := uint32(len(stopList))
	numEdges := uint32(len(pairs))
	firstOut := make([]uint32, numStops+1)
	head := make([]uint32, numEdges)
	timeSec := make([]float64, numEdges)
	trips := make([]uint32, numEdges)
	maxTime := 0.0

	for i, k := range pairs {
		a := aggs[k]
		head[i] = k.to
		if a.trips > 0 {
			timeSec[i] = a.weightedSum / float64(a.trips)
		} else {
			timeSec[i] = a.plainSum / float64(a.count)
		}
		trips[i] = uint32(a.trips)
		if timeSec[i] > maxTime {
			maxTime = timeSec[i]
		}
	}

	// Build FirstOut via counting, then prefix sum.
	for _, k := range pairs {
		firstOut[k.from+1]++
	}
	for i := uint32(1); i <= numStops; i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph{
		Stops:      stopList,
		FirstOut:   firstOut,
		Head:       head,
		TimeSec:    timeSec,
		Trips:      trips,
		MaxTimeSec: maxTime,
		index:      index,
	}, report, nil
}
