package relabel

import (
	"runtime"
	"sync"

	"github.com/smuth-go/smuth/internal/vcf"
)

// WorkItem holds a parsed record ready for relabeling.
type WorkItem struct {
	Seq    int
	Line   int // source line of the record, 0 if unknown
	Record *vcf.Record
}

// WorkResult holds the relabel output for a single record.
type WorkResult struct {
	Seq    int
	Line   int
	Record *vcf.Record
	Result Result
	Err    error
}

// Parallel relabels work items using a pool of workers. Each record is
// handled by exactly one worker, so records must not be shared between
// items. Results are sent in arrival order; use OrderedCollect to consume
// them in sequence-number order. If workers is 0, runtime.NumCPU() is used.
func (rl *Relabeler) Parallel(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := rl.Relabel(item.Record)
				results <- WorkResult{
					Seq:    item.Seq,
					Line:   item.Line,
					Record: item.Record,
					Result: res,
					Err:    err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until the next expected
// sequence number arrives. Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
