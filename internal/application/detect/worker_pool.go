package detect

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sasp-edomex/scil-auditoria/internal/core/finding"
	"github.com/sasp-edomex/scil-auditoria/internal/core/ingest"
)

// rfcJob is one RFC's rows to run through the detector, grounded on the
// teacher's DocumentJob/DocumentResult shape (internal/application/invoice
// /worker_pool.go) but specialized to a pure, I/O-free computation: no
// repository lookups, no cache, no provider client.
type rfcJob struct {
	Index int
	RFC   string
	Rows  []ingest.SourceRow
}

// runRFCJobs fans jobs out across workerCount goroutines bounded by
// errgroup.SetLimit. Per-RFC inputs are disjoint (spec.md section 5), so
// each goroutine writes only to its own pre-assigned slot and no further
// synchronization is needed.
func runRFCJobs(ctx context.Context, jobs []rfcJob, workerCount, year int) [][]finding.Finding {
	if workerCount < 1 {
		workerCount = 1
	}

	slots := make([][]finding.Finding, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			slots[job.Index] = detectForRFC(job.RFC, job.Rows, year)
			return nil
		})
	}

	// Per-RFC detection never returns an error; the only failure mode is
	// context cancellation, which leaves the corresponding slots empty.
	_ = g.Wait()
	return slots
}
