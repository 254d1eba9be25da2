package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
)

var batchWorkers int

var batchCmd = &cobra.Command{
	Use:   "batch <requests.jsonl>",
	Short: "Reason over a file of turn requests, sessions in parallel",
	Long: `Each line is a JSON turn request:

  {"session_id": "s1", "subject_id": "u1", "signals": [{"label": "Panic", "category": "emotion"}]}

Turns of one session run in file order; different sessions run in parallel.
One JSON line is printed per request, in request order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := readRequests(args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		workers := cfg.Sessions.Workers
		if cmd.Flags().Changed("workers") {
			workers = batchWorkers
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		failed := 0
		for _, br := range rt.engine.ReasonBatch(cmd.Context(), reqs, workers) {
			line := batchLine{Index: br.Index}
			if br.Err != nil {
				failed++
				pe := engine.Public(br.Err)
				line.Error = &pe
			} else {
				res := br.Result
				line.Result = &res
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d turns failed", failed, len(reqs))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "sessions in flight (overrides config)")
}

type batchLine struct {
	Index  int                 `json:"index"`
	Result *engine.Result      `json:"result,omitempty"`
	Error  *engine.PublicError `json:"error,omitempty"`
}

func readRequests(path string) ([]engine.TurnRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requests: %w", err)
	}
	defer f.Close()

	var reqs []engine.TurnRequest
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r engine.TurnRequest
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		reqs = append(reqs, r)
	}
	return reqs, sc.Err()
}
