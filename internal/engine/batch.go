package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// #region reason-batch

// ReasonBatch runs turns with at most workers sessions in flight. Turns of
// the same session run in input order; a failed turn does not stop the rest
// of its session or the batch. Results are returned in request order.
func (e *Engine) ReasonBatch(ctx context.Context, reqs []TurnRequest, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	out := make([]BatchResult, len(reqs))

	var order []string
	groups := make(map[string][]int)
	for i, r := range reqs {
		if _, ok := groups[r.SessionID]; !ok {
			order = append(order, r.SessionID)
		}
		groups[r.SessionID] = append(groups[r.SessionID], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sid := range order {
		idxs := groups[sid]
		g.Go(func() error {
			for _, i := range idxs {
				r := reqs[i]
				res, err := e.Reason(gctx, r.SessionID, r.SubjectID, r.Signals)
				out[i] = BatchResult{Index: i, Result: res, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// #endregion reason-batch
