package engine

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/dcac/traveltimes/internal/cache"
	"github.com/dcac/traveltimes/internal/osrm"
	"github.com/dcac/traveltimes/internal/pairs"
	"github.com/dcac/traveltimes/internal/points"
)

// Error markers persisted with a failed direction. Fixed strings keep
// repeated runs byte-identical in the export.
const (
	markNoRoute = "no_route"
	markError   = "error"
)

// dispatch feeds pending pairs to a fixed pool of workers and blocks until
// the queue is drained or the context is cancelled. Cache write failures
// are fatal and stop the pool; routing failures are recorded per pair.
func (c *Coordinator) dispatch(ctx context.Context, pending []pairs.Pair, index map[string]points.Point) error {
	if len(pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	setFatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	work := make(chan pairs.Pair)
	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				res, err := c.compute(ctx, p, index)
				if err != nil {
					// Cancellation mid-pair: drop the partial result, the
					// pair stays pending for the next run.
					return
				}
				// The write must land even while the run is shutting down;
				// tearing it here would violate the no-partial-entries rule.
				if err := c.store.Put(context.WithoutCancel(ctx), p.Fingerprint(), res); err != nil {
					setFatal(err)
					return
				}
				c.processed.Add(1)
				if res.Forward.Failed() || res.Backward.Failed() {
					c.failed.Add(1)
				}
			}
		}()
	}

	for _, p := range pending {
		select {
		case <-ctx.Done():
			// Stop handing out new work; in-flight pairs finish on their own.
			goto drained
		case work <- p:
		}
	}
drained:
	close(work)
	wg.Wait()

	return fatalErr
}

// compute resolves both directions of a pair. The two directed queries run
// concurrently but the result is only assembled once both have finished, so
// a Result handed to the cache is always complete. A non-nil error means
// the run is being cancelled and the result must be discarded.
func (c *Coordinator) compute(ctx context.Context, p pairs.Pair, index map[string]points.Point) (cache.Result, error) {
	origin, dest := index[p.From], index[p.To]

	var (
		res     cache.Result
		fwdErr  error
		backErr error
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Forward, fwdErr = c.direction(ctx, origin, dest)
	}()
	go func() {
		defer wg.Done()
		res.Backward, backErr = c.direction(ctx, dest, origin)
	}()
	wg.Wait()

	if fwdErr != nil {
		return cache.Result{}, fwdErr
	}
	if backErr != nil {
		return cache.Result{}, backErr
	}
	return res, nil
}

// direction issues one directed oracle query and folds the outcome into a
// cache.Direction. Permanent failures (no route, exhausted retries) become
// resolved-failed directions; only context cancellation is reported as an
// error so the caller can abandon the pair.
func (c *Coordinator) direction(ctx context.Context, origin, dest points.Point) (cache.Direction, error) {
	leg, err := c.oracle.Query(ctx, origin, dest)
	if err == nil {
		return cache.Direction{Minutes: leg.Minutes, Km: leg.Km}, nil
	}
	if ctx.Err() != nil {
		// The run is shutting down; the query error is just its echo.
		return cache.Direction{}, ctx.Err()
	}
	if errors.Is(err, osrm.ErrNoRoute) {
		log.Printf("run %s: no route from %s to %s", c.RunID, origin.ID, dest.ID)
		return cache.Direction{Err: markNoRoute}, nil
	}
	log.Printf("run %s: %s -> %s failed: %v", c.RunID, origin.ID, dest.ID, err)
	return cache.Direction{Err: markError}, nil
}
