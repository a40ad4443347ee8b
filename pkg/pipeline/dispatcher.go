package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dasmlab/pdftrans/pkg/translate"
)

// DefaultConcurrency is the per-phase worker limit used when none is set.
const DefaultConcurrency = 16

// TranslateFunc translates one unit. It must not touch the document.
type TranslateFunc func(ctx context.Context, u Unit) translate.Outcome

// ApplyFunc writes one result back. It runs on the dispatching goroutine
// only, one result at a time.
type ApplyFunc func(u Unit, o translate.Outcome) error

type result struct {
	unit    Unit
	outcome translate.Outcome
}

// Dispatcher fans translation calls out over a bounded worker pool and
// applies the results in completion order.
type Dispatcher struct {
	Limit  int
	logger *logrus.Logger
}

// NewDispatcher creates a dispatcher running at most limit translations at
// once. A limit below 1 means DefaultConcurrency.
func NewDispatcher(limit int, logger *logrus.Logger) *Dispatcher {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{Limit: limit, logger: logger}
}

// Dispatch translates every unit and applies each result exactly once.
// Workers only call tr; apply and the tracker tick happen here, so writes to
// the document are serialized. Each unit carries its own target, so the
// completion order does not matter.
//
// A failing apply or a canceled ctx stops the phase: no new units start,
// in-flight ones are drained and the error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, units []Unit, tr TranslateFunc, apply ApplyFunc, tracker *Tracker) error {
	if len(units) == 0 {
		return ctx.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(units))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(d.Limit)

	var waitErr error
	go func() {
		defer close(results)
		for _, u := range units {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results <- result{unit: u, outcome: tr(gctx, u)}
				return nil
			})
		}
		waitErr = g.Wait()
	}()

	var applyErr error
	for r := range results {
		if applyErr != nil || ctx.Err() != nil {
			continue
		}
		if err := apply(r.unit, r.outcome); err != nil {
			applyErr = err
			cancel()
			continue
		}
		if tracker != nil {
			tracker.Tick(r.unit)
		}
		d.logger.WithFields(logrus.Fields{
			"unit_id":     r.unit.ID(),
			"passthrough": r.outcome.Passthrough,
			"skipped":     r.outcome.Skipped,
		}).Debug("Unit completed")
	}

	switch {
	case applyErr != nil:
		return applyErr
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return waitErr
	}
}
