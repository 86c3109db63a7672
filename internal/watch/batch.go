package watch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

type Processor interface {
	Process(ctx context.Context, path string, opts ingest.Options) ingest.Outcome
}

// Summary counts batch outcomes by status.
type Summary struct {
	Total         int `json:"total"`
	Succeeded     int `json:"succeeded"`
	Duplicates    int `json:"duplicates"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	MessagesAdded int `json:"messages_added"`
}

func (s *Summary) add(out ingest.Outcome) {
	s.Total++
	switch out.Status {
	case ingest.StatusSuccess:
		s.Succeeded++
	case ingest.StatusDuplicate:
		s.Duplicates++
	case ingest.StatusSkipped:
		s.Skipped++
	case ingest.StatusFailed:
		s.Failed++
	}
	s.MessagesAdded += out.MessagesAdded
}

// RunBatch ingests paths with at most workers in flight. Outcomes are
// returned in the order of paths; paths not started because ctx ended are
// left zero and not counted. The error is ctx's, if it ended early.
func RunBatch(ctx context.Context, proc Processor, paths []string, workers int, opts ingest.Options) (Summary, []ingest.Outcome, error) {
	return RunBatchWith(ctx, proc, paths, workers, func(string) ingest.Options { return opts })
}

// RunBatchWith is RunBatch with options chosen per path.
func RunBatchWith(ctx context.Context, proc Processor, paths []string, workers int, optsFor func(path string) ingest.Options) (Summary, []ingest.Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]ingest.Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var sum Summary
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := proc.Process(gctx, path, optsFor(path))
			outcomes[i] = out
			mu.Lock()
			sum.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sum, outcomes, ctx.Err()
}
