package processor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ProcessBatch processes reqs concurrently, at most limit at a time (no
// limit when limit <= 0), and returns the results in request order.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []Request, limit int) []Result {
	results := make([]Result, len(reqs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = p.ProcessVideo(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
