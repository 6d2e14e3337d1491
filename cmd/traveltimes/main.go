// Command traveltimes computes the pairwise travel-time/distance matrix
// between postal-code centroids by querying a local OSRM server for every
// unordered pair. Results are cached in sqlite, so interrupted or repeated
// runs only query pairs that are still missing.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dcac/traveltimes/internal/cache"
	"github.com/dcac/traveltimes/internal/config"
	"github.com/dcac/traveltimes/internal/engine"
	"github.com/dcac/traveltimes/internal/export"
	"github.com/dcac/traveltimes/internal/osrm"
	"github.com/dcac/traveltimes/internal/points"
	"github.com/dcac/traveltimes/internal/status"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	var (
		configPath = flag.String("config", "config/config.toml", "path to TOML config file")
		input      = flag.String("input", "", "input CSV with id/lat/lon columns")
		output     = flag.String("output", "", "output CSV path")
		osrmURL    = flag.String("osrm", "", "OSRM server base URL")
		threads    = flag.Int("threads", 0, "number of parallel workers")
		subset     = flag.Int("subset", 0, "only process pairs originating from the first N points")
		force      = flag.Bool("force", false, "recompute all pairs, overwriting cache entries")
		cachePath  = flag.String("cache", "", "sqlite cache path")
		statusAddr = flag.String("status", "", "listen address for the progress endpoint")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()

	// Explicit flags win over both the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input.Path = *input
		case "output":
			cfg.Output.Path = *output
		case "osrm":
			cfg.Oracle.BaseURL = *osrmURL
		case "threads":
			cfg.Run.Workers = *threads
		case "subset":
			cfg.Run.Subset = *subset
		case "force":
			cfg.Run.Force = *force
		case "cache":
			cfg.Cache.Path = *cachePath
		case "status":
			cfg.Status.Addr = *statusAddr
		}
	})

	pts, skipped, err := points.Load(cfg.Input.Path, points.Columns{
		ID:  cfg.Input.IDField,
		Lat: cfg.Input.LatField,
		Lon: cfg.Input.LonField,
	})
	if err != nil {
		log.Fatalf("Failed to load input points: %v", err)
	}
	if skipped > 0 {
		log.Printf("Skipped %d rows without coordinates", skipped)
	}
	if len(pts) == 0 {
		log.Fatalf("No valid points in %s", cfg.Input.Path)
	}
	log.Printf("Loaded %d points from %s", len(pts), cfg.Input.Path)

	if _, err := os.Stat(cfg.Output.Path); err == nil {
		if !cfg.Run.Force {
			log.Fatalf("Output file %s already exists. Use -force to overwrite.", cfg.Output.Path)
		}
		log.Printf("Output file %s already exists. It will be overwritten.", cfg.Output.Path)
	}

	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer store.Close()

	oracle := osrm.NewClient(cfg.Oracle.BaseURL, cfg.Timeout(), cfg.Oracle.MaxAttempts, cfg.Backoff())
	coord := engine.New(store, oracle, engine.Options{
		Workers: cfg.Run.Workers,
		Subset:  cfg.Run.Subset,
		Force:   cfg.Run.Force,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Status.Addr != "" {
		status.NewServer(coord, store).Start(ctx, cfg.Status.Addr)
	}

	rows, err := coord.Run(ctx, pts)
	if err != nil {
		if errors.Is(err, context.Canceled) && len(rows) > 0 {
			log.Printf("Run interrupted; exporting the %d pairs finished so far", len(rows))
		} else {
			log.Fatalf("Run failed: %v", err)
		}
	}

	if err := export.WriteCSV(cfg.Output.Path, rows); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	indexPath := replaceExt(cfg.Output.Path, ".json")
	if err := export.WriteIndex(indexPath, rows); err != nil {
		log.Fatalf("Failed to write JSON index: %v", err)
	}
	statsPath := replaceExt(cfg.Output.Path, ".stats.json")
	if err := export.WriteStats(statsPath, rows, len(pts)); err != nil {
		log.Fatalf("Failed to write stats: %v", err)
	}

	p := coord.Progress()
	entries, err := store.Count(context.Background())
	if err != nil {
		log.Fatalf("Failed to count cache entries: %v", err)
	}
	log.Printf("Done: %d rows exported (%d computed this run, %d failed), %d cache entries",
		len(rows), p.Processed, p.Failed, entries)
	log.Printf("Results written to %s, %s and %s", cfg.Output.Path, indexPath, statsPath)
}

func replaceExt(path, ext string) string {
	if strings.HasSuffix(path, ".csv") {
		return strings.TrimSuffix(path, ".csv") + ext
	}
	return path + ext
}
