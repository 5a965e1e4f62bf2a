package export

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dhl-metadata/unlibmd/internal/marc"
	"github.com/dhl-metadata/unlibmd/internal/model"
	"github.com/dhl-metadata/unlibmd/internal/undl"
)

// DefaultWorkers is the extraction worker count when the caller does
// not choose one. Extraction is cheap relative to the network fetch, so
// a small pool keeps up with any realistic page rate.
const DefaultWorkers = 4

// Harvester is the slice of the UNDL client the export pipeline needs.
// *undl.Client satisfies it; tests substitute a local fake.
type Harvester interface {
	Harvest(ctx context.Context, query *model.SearchQuery, fn undl.PageFunc) (*undl.HarvestStats, error)
}

// pageJob carries one fetched page into the worker pool. The sequence
// number lets the writer restore page order after parallel extraction.
type pageJob struct {
	seq     int
	records []marc.Record
}

// pageResult carries one page's rendered rows out of the worker pool.
type pageResult struct {
	seq  int
	rows [][]string
}

// Run streams a harvest through field extraction into the row writer:
// one producer goroutine fetching pages, a pool of extraction workers,
// and an ordered write loop that emits rows in harvest order regardless
// of which worker finished first.
func Run(ctx context.Context, h Harvester, query *model.SearchQuery, mapping *Mapping, out RowWriter, workers int) (*undl.HarvestStats, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	specs := mapping.Specs()

	if err := out.WriteHeader(mapping.Columns()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	jobs := make(chan pageJob)
	results := make(chan pageResult, workers)

	// Producer: drives the paginated harvest, handing each page to the
	// worker pool.
	var stats *undl.HarvestStats
	group.Go(func() error {
		defer close(jobs)
		seq := 0
		harvestStats, err := h.Harvest(groupCtx, query, func(page *undl.SearchPage) error {
			job := pageJob{seq: seq, records: page.Records}
			seq++
			select {
			case jobs <- job:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
		stats = harvestStats
		return err
	})

	// Workers: extract and render each page's records.
	for range workers {
		group.Go(func() error {
			for job := range jobs {
				rows := make([][]string, len(job.records))
				for i := range job.records {
					values := marc.Extract(&job.records[i], specs)
					rows[i] = mapping.Row(values)
				}
				select {
				case results <- pageResult{seq: job.seq, rows: rows}:
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
			}
			return nil
		})
	}

	// Close results once the producer and all workers are done, so the
	// write loop below terminates.
	var pipelineErr error
	go func() {
		pipelineErr = group.Wait()
		close(results)
	}()

	// Ordered write loop: pages may finish extraction out of order, so
	// hold completed pages until their predecessors have been written.
	var writeErr error
	pending := make(map[int][][]string)
	next := 0
	for result := range results {
		if writeErr != nil {
			continue // drain after a write failure
		}
		pending[result.seq] = result.rows
		for {
			rows, ready := pending[next]
			if !ready {
				break
			}
			delete(pending, next)
			next++
			for _, row := range rows {
				if err := out.WriteRow(row); err != nil {
					writeErr = err
					cancel()
					break
				}
			}
			if writeErr != nil {
				break
			}
		}
	}

	if writeErr != nil {
		return stats, writeErr
	}
	if pipelineErr != nil {
		return stats, pipelineErr
	}
	return stats, out.Close()
}
