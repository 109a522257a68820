package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"transit_router/pkg/graph"
	"transit_router/pkg/store"
)

func main() {
	stopsPath := flag.String("stops", "", "Path to stops CSV (stop_id,name,lat,lon)")
	edgesPath := flag.String("edges", "", "Path to edges CSV (from,to,travel_time_sec,trips)")
	output := flag.String("output", "network.db", "Output SQLite database path")
	flag.Parse()

	if *stopsPath == "" || *edgesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --stops <stops.csv> --edges <edges.csv> [--output network.db]")
		os.Exit(1)
	}

	start := time.Now()

	log.Printf("Reading stops from %s...", *stopsPath)
	stops, err := readStops(*stopsPath)
	if err != nil {
		log.Fatalf("Failed to read stops: %v", err)
	}
	log.Printf("Read %d stop records", len(stops))

	log.Printf("Reading edges from %s...", *edgesPath)
	edges, err := readEdges(*edgesPath)
	if err != nil {
		log.Fatalf("Failed to read edges: %v", err)
	}
	log.Printf("Read %d edge records", len(edges))

	// Build once so malformed input fails here, not at server startup.
	log.Println("Validating network...")
	g, report, err := graph.Build(stops, edges)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Printf("Graph: %d stops, %d edges (%d duplicate stops, %d edges dropped)",
		g.NumStops(), g.NumEdges(), report.DuplicateStops, report.DroppedEdges)

	stats := graph.Components(g)
	log.Printf("Components: %d (largest %d stops, %d isolated)",
		stats.Components, stats.LargestSize, stats.IsolatedStops)

	log.Printf("Writing %s...", *output)
	db, err := store.Open(*output)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.SaveNetwork(stops, edges); err != nil {
		log.Fatalf("Failed to save network: %v", err)
	}

	info, _ := os.Stat(*output)
	log.Printf("Done in %s. Output: %s (%.1f KB)",
		time.Since(start).Round(time.Millisecond), *output, float64(info.Size())/1024)
}

func readStops(path string) ([]graph.StopRecord, error) {
	rows, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}
	stops := make([]graph.StopRecord, 0, len(rows))
	for i, row := range rows {
		lat, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: lat: %w", i+2, err)
		}
		lon, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: lon: %w", i+2, err)
		}
		stops = append(stops, graph.StopRecord{ID: row[0], Name: row[1], Lat: lat, Lon: lon})
	}
	return stops, nil
}

func readEdges(path string) ([]graph.EdgeRecord, error) {
	rows, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}
	edges := make([]graph.EdgeRecord, 0, len(rows))
	for i, row := range rows {
		timeSec, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: travel_time_sec: %w", i+2, err)
		}
		trips, err := strconv.ParseUint(row[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("row %d: trips: %w", i+2, err)
		}
		edges = append(edges, graph.EdgeRecord{
			From:          row[0],
			To:            row[1],
			TravelTimeSec: timeSec,
			Trips:         uint32(trips),
		})
	}
	return edges, nil
}

// readCSV reads all data rows of a CSV file, skipping the header line.
func readCSV(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
