package checker

import (
	"context"
	"sync"
	"time"

	"vetproxy/proxy"
)

// ProgressFunc receives one call per finished candidate: checked counts
// completions so far, total is the batch size, and rec is the surviving
// record or nil when the candidate was rejected.
type ProgressFunc func(checked, total int, rec *proxy.Record)

// CheckAll probes every endpoint through a bounded worker pool and
// returns the surviving records in completion order. onProgress fires
// synchronously in completion order, exactly once per finished candidate;
// it may be nil. Cancelling ctx stops new work, in-flight probes abort
// best-effort, and whatever completed by then is returned. An empty
// candidate set returns immediately with zero callbacks.
func (c *Checker) CheckAll(ctx context.Context, endpoints []string, onProgress ProgressFunc) []*proxy.Record {
	total := len(endpoints)
	start := time.Now()
	c.log.Info().Int("candidates", total).Int("workers", c.maxWorkers).Msg("starting check run")

	results := make(chan *proxy.Record, total)
	semaphore := make(chan struct{}, c.maxWorkers)
	var wg sync.WaitGroup

	for _, endpoint := range endpoints {
		wg.Add(1)
		go func(e string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			rec, err := c.Check(ctx, e)
			if err != nil {
				c.log.Debug().Err(err).Str("endpoint", e).Msg("candidate rejected")
				results <- nil
				return
			}
			results <- rec
		}(endpoint)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var records []*proxy.Record
	checked := 0
	for rec := range results {
		checked++
		if rec != nil {
			records = append(records, rec)
		}
		if onProgress != nil {
			onProgress(checked, total, rec)
		}
	}

	c.log.Info().
		Int("working", len(records)).
		Int("checked", checked).
		Int("candidates", total).
		Dur("elapsed", time.Since(start)).
		Msg("check run finished")

	return records
}
