package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/extract"
)

var (
	chatSession string
	chatSubject string
	chatOffline bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive loop: extract signals from each line and reason over them",
	Long: `Reads one message per line. Each message is sent to the extractor over
gRPC and the returned signals are reasoned over as one turn. With
--offline, messages are matched against built-in keyword tables instead.

  /signals emotion:Panic symptom:RapidHeartRate   bypasses extraction
  quit | exit                                     ends the session`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id (default: generated)")
	chatCmd.Flags().StringVar(&chatSubject, "subject", "", "subject id")
	chatCmd.Flags().BoolVar(&chatOffline, "offline", false, "match keywords locally instead of calling the extractor")
	_ = chatCmd.MarkFlagRequired("subject")
}

// #region chat
func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var ex extract.Extractor = extract.Keywords{}
	label := "offline keywords"
	if !chatOffline {
		client, err := extract.NewClient(cfg.Extractor.Address, cfg.ExtractorTimeout())
		if err != nil {
			return fmt.Errorf("failed to connect to extractor at %s: %w", cfg.Extractor.Address, err)
		}
		defer client.Close()
		ex, label = client, cfg.Extractor.Address
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Session reasoner ready.")
	fmt.Fprintf(out, "  Sessions: %s | Extractor: %s\n", cfg.Sessions.Dir, label)
	fmt.Fprintln(out, "Type a message (or 'quit' to exit):")

	session := chatSession
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		signals, err := lineSignals(cmd, ex, line)
		if err != nil {
			logger.Warn("extract failed", zap.Error(err))
			fmt.Fprintln(out, engine.Public(err).Message)
			continue
		}

		res, err := rt.engine.Reason(ctx, session, chatSubject, signals)
		if err != nil {
			pe := engine.Public(err)
			fmt.Fprintf(out, "%s. %s\n", pe.Message, pe.Retry)
			continue
		}
		session = res.SessionID
		printTurn(out, res)
	}
	return scanner.Err()
}

func lineSignals(cmd *cobra.Command, ex extract.Extractor, line string) ([]evidence.Signal, error) {
	if rest, ok := strings.CutPrefix(line, "/signals"); ok {
		return parseSignals(strings.Fields(rest))
	}
	res, err := ex.Extract(cmd.Context(), line)
	if err != nil {
		return nil, err
	}
	if len(res.Unmapped) > 0 {
		logger.Debug("unmapped extractor concepts", zap.Strings("concepts", res.Unmapped))
	}
	return res.Signals, nil
}

// #endregion chat

// #region output
func printTurn(w io.Writer, res engine.Result) {
	fmt.Fprintf(w, "\n[%s %s] escalation=%s safety=%s audit=%s\n",
		res.SessionID, res.Turn, res.EscalationLevel, res.AggregatedSafety, res.AuditRef)
	for _, r := range res.RankedStates {
		fmt.Fprintf(w, "  %d. %-36s confidence=%-6s safety=%s\n", r.Rank, r.Description, r.Confidence, r.SafetyFlag)
	}
	for _, reason := range res.EscalationReasons {
		fmt.Fprintf(w, "  - %s\n", reason)
	}
	fmt.Fprintf(w, "\n%s\n\n%s\n\n", res.SupportRecommendation, res.Disclaimer)
}

// #endregion output
