package replay

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region types

// TurnResult captures the outcome of replaying one fixture turn.
type TurnResult struct {
	Index     int
	SessionID string
	Turn      string
	Expected  Expected
	Got       Expected
	Diff      string // empty when the turn matched
	Err       error
}

// Match reports whether the turn ran and matched its expectation.
func (r TurnResult) Match() bool { return r.Err == nil && r.Diff == "" }

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns  int
	Matched     int
	Diverged    int
	Errors      int
	Escalations map[ontology.EscalationLevel]int
}

// #endregion types

// #region replay

var compareOpts = cmp.Options{
	cmpopts.SortSlices(func(a, b ontology.Label) bool { return a < b }),
	cmpopts.EquateEmpty(),
}

// Replay runs every turn of f through a fresh engine rooted at dir. Each new
// session is created at its turn's CreatedAt, so recorded audit refs can be
// reproduced. A failed turn is reported in its TurnResult and does not stop
// the run.
func Replay(ctx context.Context, f *Fixture, dir string, opts ...engine.Option) ([]TurnResult, error) {
	var created time.Time
	clock := func() time.Time {
		if created.IsZero() {
			return time.Unix(0, 0).UTC()
		}
		return created
	}
	e, err := engine.New(dir, append(slices.Clone(opts), engine.WithClock(clock))...)
	if err != nil {
		return nil, fmt.Errorf("replay engine: %w", err)
	}

	results := make([]TurnResult, 0, len(f.Turns))
	for i, turn := range f.Turns {
		created = turn.CreatedAt
		res, err := e.Reason(ctx, turn.SessionID, turn.SubjectID, turn.Signals)
		tr := TurnResult{Index: i, SessionID: turn.SessionID, Expected: turn.Expected, Err: err}
		if err == nil {
			tr.Turn = res.Turn
			tr.Got = Expected{
				DerivedStates:   res.DerivedStates,
				EscalationLevel: res.EscalationLevel,
				AuditRef:        res.AuditRef,
			}
			if res.PrimaryConcern != nil {
				tr.Got.PrimaryConcern = *res.PrimaryConcern
			}
			tr.Diff = diff(turn.Expected, tr.Got)
		}
		results = append(results, tr)
	}
	return results, nil
}

func diff(want, got Expected) string {
	if want.AuditRef == "" {
		got.AuditRef = ""
	}
	return cmp.Diff(want, got, compareOpts)
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []TurnResult) Summary {
	s := Summary{
		TotalTurns:  len(results),
		Escalations: make(map[ontology.EscalationLevel]int),
	}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Errors++
			continue
		case r.Diff == "":
			s.Matched++
		default:
			s.Diverged++
		}
		s.Escalations[r.Got.EscalationLevel]++
	}
	return s
}

// #endregion replay
