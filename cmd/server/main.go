package main

import (
	"flag"
	"log"
	"os"
	"time"

	"transit_router/pkg/api"
	"transit_router/pkg/config"
	"transit_router/pkg/rank"
	"transit_router/pkg/routing"
	"transit_router/pkg/snapshot"
	"transit_router/pkg/spatial"
	"transit_router/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty = defaults)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	start := time.Now()

	log.Printf("Loading network from %s...", cfg.DBPath)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	stops, edges, err := db.LoadNetwork()
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}
	log.Printf("Loaded %d stop records, %d edge records", len(stops), len(edges))

	rankOpts := rank.Options{
		Damping:       cfg.Rank.Damping,
		Epsilon:       cfg.Rank.Epsilon,
		MaxIterations: cfg.Rank.MaxIterations,
	}

	pub := snapshot.NewPublisher()
	snap, report, err := pub.Build(stops, edges, rankOpts)
	if err != nil {
		log.Fatalf("Failed to build snapshot: %v", err)
	}
	if report.DuplicateStops > 0 || report.DroppedEdges > 0 {
		log.Printf("Build report: %d duplicate stops, %d edges dropped",
			report.DuplicateStops, report.DroppedEdges)
	}

	if err := db.SaveScores(snap.Generation, snap.Graph, snap.Risk); err != nil {
		log.Printf("Failed to persist scores: %v", err)
	}

	log.Println("Building R-tree spatial index...")
	index := spatial.NewIndex(snap.Graph)

	log.Printf("Ready in %s", time.Since(start).Round(time.Millisecond))

	adv := routing.NewAdvisor(cfg.Routing.MaxConcurrentQueries)
	handlers := api.NewHandlers(pub, adv, index, rankOpts,
		cfg.Routing.DefaultAlpha, cfg.Routing.QueryTimeoutDuration())
	srv := api.NewServer(cfg.Server, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
