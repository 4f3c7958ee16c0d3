package scenarioservice

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"maelstrom/internal/domain/scenario"
)

// Sweep runs the same snapshot across a grid of scenario configurations on a
// bounded worker pool. Each run owns an isolated copy of the snapshot, so no
// state crosses run boundaries and no locking is needed inside a run.
// Results are returned in configuration order.
func (s *Service) Sweep(ctx context.Context, snap *scenario.Snapshot, cfgs []scenario.Config) ([]*scenario.Result, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	var limiter *rate.Limiter
	if s.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.rate), 1)
	}

	type job struct {
		index int
		cfg   scenario.Config
	}

	jobs := make(chan job)
	results := make([]*scenario.Result, len(cfgs))
	errs := make([]error, len(cfgs))

	workers := s.workers
	if workers > len(cfgs) {
		workers = len(cfgs)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					errs[j.index] = ctx.Err()
					continue
				}
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						errs[j.index] = err
						continue
					}
				}
				results[j.index], errs[j.index] = s.Run(ctx, snap, j.cfg)
			}
		}()
	}

	for i, cfg := range cfgs {
		jobs <- job{index: i, cfg: cfg}
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	s.log.Infow("sweep complete", "runs", len(cfgs), "workers", workers)
	return results, nil
}
