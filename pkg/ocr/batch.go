package ocr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// workerCount resolves the effective worker bound for a batch call.
func (c *Client) workerCount(opts *BatchOptions) (int, error) {
	n := c.cfg.MaxWorkers
	if opts != nil && opts.Workers != 0 {
		n = opts.Workers
	}
	if n <= 0 {
		return 0, ErrInvalidWorkers
	}
	return n, nil
}

func requestOptions(opts *BatchOptions) *Options {
	if opts == nil {
		return nil
	}
	return &opts.Options
}

// OCRBatch runs OCRImage across imgs with at most the worker bound in
// flight, writing each result into its pre-assigned slot so output order
// matches input order regardless of completion order. The first item
// failure is reported after in-flight items finish; it does not cancel
// them.
func (c *Client) OCRBatch(ctx context.Context, imgs []Image, opts *BatchOptions) ([]*Result, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	workers, err := c.workerCount(opts)
	if err != nil {
		return nil, err
	}

	reqOpts := requestOptions(opts)
	results := make([]*Result, len(imgs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			res, err := c.OCRImage(ctx, img, reqOpts)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// OCRBatchUnordered runs OCRImage across imgs under the worker bound and
// collects results in completion order.
func (c *Client) OCRBatchUnordered(ctx context.Context, imgs []Image, opts *BatchOptions) ([]*Result, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	workers, err := c.workerCount(opts)
	if err != nil {
		return nil, err
	}

	reqOpts := requestOptions(opts)
	var (
		mu       sync.Mutex
		firstErr error
		results  = make([]*Result, 0, len(imgs))
	)

	next := make(chan int)
	go func() {
		defer close(next)
		for i := range imgs {
			select {
			case next <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				res, err := c.OCRImage(ctx, imgs[i], reqOpts)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("image %d: %w", i, err)
					}
				} else {
					results = append(results, res)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// OCRBatchFunc runs OCRImage across imgs and reports each outcome
// through cbs as it completes. A failed item invokes OnError, leaves a
// nil slot at its index and never aborts sibling items. Workers pull
// indices from a shared counter, so the bound holds no matter how large
// the input is.
func (c *Client) OCRBatchFunc(ctx context.Context, imgs []Image, cbs BatchCallbacks, opts *BatchOptions) ([]*Result, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	workers, err := c.workerCount(opts)
	if err != nil {
		return nil, err
	}
	if workers > len(imgs) {
		workers = len(imgs)
	}

	reqOpts := requestOptions(opts)
	results := make([]*Result, len(imgs))

	var (
		next atomic.Int64
		cbMu sync.Mutex
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(imgs) {
					return
				}
				res, err := c.OCRImage(ctx, imgs[i], reqOpts)
				if err != nil {
					if cbs.OnError != nil {
						cbMu.Lock()
						cbs.OnError(i, err)
						cbMu.Unlock()
					}
					continue
				}
				results[i] = res
				if cbs.OnResult != nil {
					cbMu.Lock()
					cbs.OnResult(i, res)
					cbMu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return results, nil
}
