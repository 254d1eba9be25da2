package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/replay"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
)

// #region main

func main() {
	rulesPath := flag.String("rules", "", "rule table YAML (default: embedded table)")
	workers := flag.Int("workers", runtime.NumCPU(), "fixtures replayed in parallel")
	keep := flag.Bool("keep", false, "keep the replay session directories")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay [--rules rules.yaml] [--workers N] [--keep] fixture.json...")
		os.Exit(2)
	}
	os.Exit(run(context.Background(), flag.Args(), *rulesPath, *workers, *keep))
}

// #endregion main

// #region run

type fixtureRun struct {
	path    string
	dir     string
	results []replay.TurnResult
	err     error
}

func run(ctx context.Context, paths []string, rulesPath string, workers int, keep bool) int {
	var opts []engine.Option
	if rulesPath != "" {
		t, err := rules.LoadFile(rulesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
			return 2
		}
		opts = append(opts, engine.WithRules(t))
	}

	runs := make([]fixtureRun, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			runs[i] = replayOne(gctx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	code := 0
	for _, r := range runs {
		if c := printComparison(r); c > code {
			code = c
		}
		if r.dir != "" && !keep {
			_ = os.RemoveAll(r.dir)
		}
	}
	return code
}

func replayOne(ctx context.Context, path string, opts []engine.Option) fixtureRun {
	r := fixtureRun{path: path}
	f, err := replay.LoadFixture(path)
	if err != nil {
		r.err = err
		return r
	}
	r.dir, err = os.MkdirTemp("", "replay-"+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-")
	if err != nil {
		r.err = err
		return r
	}
	r.results, r.err = replay.Replay(ctx, f, r.dir, opts...)
	return r
}

// #endregion run

// #region output

// printComparison outputs a comparison table and returns the exit code:
// 0 all match, 1 divergence, 2 the fixture could not be replayed.
func printComparison(r fixtureRun) int {
	fmt.Printf("== %s\n", r.path)
	if r.err != nil {
		fmt.Printf("  error: %v\n\n", r.err)
		return 2
	}

	fmt.Printf("%-4s| %-16s| %-8s| %-10s| %-10s| %s\n", "#", "Session", "Turn", "Expected", "Replayed", "Match")
	fmt.Printf("%-4s+%-17s+%-9s+%-11s+%-11s+%s\n", "----", "-----------------", "---------", "-----------", "-----------", "------")

	for _, tr := range r.results {
		match := "OK"
		switch {
		case tr.Err != nil:
			match = "ERROR"
		case tr.Diff != "":
			match = "DIFF"
		}
		fmt.Printf("%-4d| %-16s| %-8s| %-10s| %-10s| %s\n",
			tr.Index, tr.SessionID, tr.Turn, tr.Expected.EscalationLevel, tr.Got.EscalationLevel, match)
		if tr.Err != nil {
			fmt.Printf("      %v\n", tr.Err)
		}
		if tr.Diff != "" {
			for _, line := range strings.Split(strings.TrimRight(tr.Diff, "\n"), "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}

	s := replay.Summarize(r.results)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge, %d error\n\n", s.TotalTurns, s.Matched, s.Diverged, s.Errors)

	if s.Diverged > 0 || s.Errors > 0 {
		return 1
	}
	return 0
}

// #endregion output
