package sim

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/san-kum/drivenav/internal/paths"
)

// Ensemble runs several paths concurrently, each with its own copy of the
// base runner's configuration. Debug sinks and observers are not shared.
type Ensemble struct {
	base *Runner
}

func NewEnsemble(r *Runner) *Ensemble {
	return &Ensemble{base: r}
}

// Run returns one result per container, in order. Failed runs leave a nil
// result and contribute to the combined error.
func (e *Ensemble) Run(ctx context.Context, containers []paths.Container) ([]*Result, error) {
	results := make([]*Result, len(containers))
	errs := make([]error, len(containers))

	var wg sync.WaitGroup
	for i, c := range containers {
		wg.Add(1)
		go func(idx int, c paths.Container) {
			defer wg.Done()

			r := &Runner{
				Hardware:  e.base.Hardware,
				Drive:     e.base.Drive,
				Estimator: e.base.Estimator,
				Config:    e.base.Config,
			}
			results[idx], errs[idx] = r.Run(ctx, c)
		}(i, c)
	}

	wg.Wait()
	return results, multierr.Combine(errs...)
}
