// Package engine orchestrates the pairwise computation: it generates the
// canonical pair set, skips pairs the cache already holds, drives a bounded
// worker pool against the routing oracle, and assembles the deterministic
// export sequence by re-reading every pair from the cache.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dcac/traveltimes/internal/cache"
	"github.com/dcac/traveltimes/internal/osrm"
	"github.com/dcac/traveltimes/internal/pairs"
	"github.com/dcac/traveltimes/internal/points"
)

// Options configures a single run.
type Options struct {
	// Workers is the number of concurrent pair workers. Each worker issues
	// the two directed queries of its pair in parallel, so the in-flight
	// request ceiling is 2×Workers.
	Workers int

	// Subset restricts the run to pairs whose From id is among the first
	// Subset sorted point ids. Zero means the full matrix.
	Subset int

	// Force recomputes every pair, overwriting existing cache entries
	// instead of skipping them.
	Force bool
}

// Row is one line of the export schema: the canonical pair plus its
// forward (From→To) and backward (To→From) outcomes.
type Row struct {
	From     string
	To       string
	Forward  cache.Direction
	Backward cache.Direction
}

// Progress is a point-in-time snapshot of a run.
type Progress struct {
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
	Remaining int64 `json:"remaining"`
	Failed    int64 `json:"failed"`
}

// Coordinator ties the pair generator, cache, and worker pool together for
// one run. Create one per invocation; counters are scoped to the run.
type Coordinator struct {
	RunID  string
	store  *cache.Store
	oracle osrm.Oracle
	opts   Options

	total     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a Coordinator over the given cache store and routing oracle.
func New(store *cache.Store, oracle osrm.Oracle, opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Coordinator{
		RunID:  uuid.New().String(),
		store:  store,
		oracle: oracle,
		opts:   opts,
	}
}

// Progress reports how far the current run has advanced. Safe to call from
// other goroutines (e.g. the status server) while Run is executing.
func (c *Coordinator) Progress() Progress {
	total := c.total.Load()
	processed := c.processed.Load()
	return Progress{
		Total:     total,
		Processed: processed,
		Remaining: total - processed,
		Failed:    c.failed.Load(),
	}
}

// Run computes (or loads from cache) the travel-time matrix for pts and
// returns the rows sorted by (From, To). Input validation failures and
// cache I/O failures abort the run; per-pair routing failures are recorded
// as resolved-failed rows and never abort it. On cancellation the already
// persisted rows are returned together with the context error.
func (c *Coordinator) Run(ctx context.Context, pts []points.Point) ([]Row, error) {
	generated, err := pairs.Generate(pts, c.opts.Subset)
	if err != nil {
		return nil, err
	}

	index := make(map[string]points.Point, len(pts))
	for _, p := range pts {
		index[p.ID] = p
	}

	pending := make([]pairs.Pair, 0, len(generated))
	for _, p := range generated {
		if c.opts.Force {
			pending = append(pending, p)
			continue
		}
		_, ok, err := c.store.Get(ctx, p.Fingerprint())
		if err != nil {
			return nil, err
		}
		if !ok {
			pending = append(pending, p)
		}
	}
	c.total.Store(int64(len(pending)))

	log.Printf("run %s: %d pairs generated, %d cached, %d pending (workers=%d force=%v)",
		c.RunID, len(generated), len(generated)-len(pending), len(pending),
		c.opts.Workers, c.opts.Force)

	if err := c.dispatch(ctx, pending, index); err != nil {
		return nil, err
	}

	// Re-read everything from the cache so the output order depends only on
	// the generated sequence, never on worker completion order.
	rows := make([]Row, 0, len(generated))
	for _, p := range generated {
		r, ok, err := c.store.Get(context.WithoutCancel(ctx), p.Fingerprint())
		if err != nil {
			return nil, err
		}
		if !ok {
			// Only reachable when the run was cancelled before this pair
			// was processed.
			continue
		}
		rows = append(rows, Row{From: p.From, To: p.To, Forward: r.Forward, Backward: r.Backward})
	}

	if err := ctx.Err(); err != nil {
		return rows, fmt.Errorf("engine: run %s interrupted: %w", c.RunID, err)
	}
	return rows, nil
}
