package service

import (
	"context"

	"github.com/haatos/simple-release/internal/types"
	"golang.org/x/sync/errgroup"
)

type Runner interface {
	Run(ctx context.Context, req Request) (*types.Attempt, error)
}

type Job struct {
	Runner  Runner
	Request Request
}

type Result struct {
	Package string
	Attempt *types.Attempt
	Err     error
}

// RunAll releases every job with at most concurrency running at once. A
// failing package does not stop the others. Results keep the job order.
func RunAll(ctx context.Context, jobs []Job, concurrency int) []Result {
	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, job := range jobs {
		g.Go(func() error {
			attempt, err := job.Runner.Run(ctx, job.Request)
			results[i] = Result{Package: job.Request.Package, Attempt: attempt, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FirstError returns the error of the first failed result in job order.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
