package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
)

var (
	turnSession string
	turnSubject string
	turnSignals []string
)

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Run one reasoning turn and print the result as JSON",
	Long: `Runs one turn for a session. Signals are given as kind:Label or
kind:Label:CONFIDENCE, for example:

  reasoner turn --session s1 --subject u1 --signal emotion:Anxiety --signal symptom:Insomnia

An empty --session starts a new session with a generated id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		signals, err := parseSignals(turnSignals)
		if err != nil {
			return err
		}
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.engine.Reason(cmd.Context(), turnSession, turnSubject, signals)
		if err != nil {
			return publicFailure(cmd.OutOrStdout(), err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	turnCmd.Flags().StringVar(&turnSession, "session", "", "session id")
	turnCmd.Flags().StringVar(&turnSubject, "subject", "", "subject id")
	turnCmd.Flags().StringArrayVar(&turnSignals, "signal", nil, "signal as kind:Label[:CONFIDENCE] (repeatable)")
	_ = turnCmd.MarkFlagRequired("subject")
}

// #region helpers

// parseSignals turns kind:Label[:CONFIDENCE] specs into signals. Labels are
// validated by the engine, not here.
func parseSignals(specs []string) ([]evidence.Signal, error) {
	out := make([]evidence.Signal, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("signal %q: want kind:Label[:CONFIDENCE]", spec)
		}
		sig := evidence.Signal{Category: parts[0], Label: parts[1]}
		if len(parts) == 3 {
			sig.Confidence = strings.ToUpper(parts[2])
		}
		out = append(out, sig)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// publicFailure prints the user-facing envelope and returns the detailed
// error for the log.
func publicFailure(w io.Writer, err error) error {
	logger.Debug("turn error detail", zap.Error(err))
	if perr := printJSON(w, engine.Public(err)); perr != nil {
		return perr
	}
	return err
}

// #endregion helpers
