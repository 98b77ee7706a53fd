// Package worker runs independent operations concurrently with an optional global rate limit
package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Options configures ProcessAll
type Options struct {
	Workers int

	// RateLimitRPS is a global limit across all workers. Set to <=0 to disable.
	RateLimitRPS float64
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Input  In
	Output Out
	Err    error
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// ProcessAll runs fn over every item and returns one Result per item in input order.
//
// A failing item never stops the others. If ctx is cancelled, items that have not
// started report the context error.
func ProcessAll[In any, Out any](
	ctx context.Context,
	items []In,
	fn func(context.Context, In) (Out, error),
	opts Options,
) []Result[In, Out] {
	opts = opts.withDefaults()
	if opts.Workers > len(items) {
		opts.Workers = len(items)
	}

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result[In, Out], len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				out[idx] = processOne(ctx, items[idx], fn, limiter)
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

func processOne[In any, Out any](
	ctx context.Context,
	item In,
	fn func(context.Context, In) (Out, error),
	limiter *rate.Limiter,
) Result[In, Out] {
	res := Result[In, Out]{Input: item}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}
	res.Output, res.Err = fn(ctx, item)
	return res
}
