package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "audit log database (with --subject)")
	subject := flag.String("subject", "", "list the indexed sessions of a subject")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	var err error
	switch {
	case *subject != "" && *dbPath != "":
		err = runIndexMode(*dbPath, *subject, *jsonOut)
	case flag.NArg() == 1:
		err = runGraphMode(flag.Arg(0), *jsonOut)
	default:
		fmt.Fprintln(os.Stderr, "usage: inspect [--json] path/to/session.graph.jsonl")
		fmt.Fprintln(os.Stderr, "       inspect --db path/to/reasoner.db --subject U [--json]")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region graph-mode

type stateRow struct {
	State       ontology.Label `json:"state"`
	Description string         `json:"description"`
	DerivedBy   []string       `json:"derived_by"`
}

type turnRow struct {
	Turn     string `json:"turn"`
	Evidence int    `json:"evidence"`
	AuditRef string `json:"audit_ref,omitempty"`
}

type graphReport struct {
	SessionID   string               `json:"session_id"`
	SubjectID   string               `json:"subject_id"`
	CreatedAt   string               `json:"created_at"`
	Facts       int                  `json:"facts"`
	Evidence    []graph.EvidenceItem `json:"evidence"`
	Categories  evidence.Categories  `json:"categories"`
	States      []stateRow           `json:"states"`
	RiskFactors []ontology.Label     `json:"risk_factors"`
	Turns       []turnRow            `json:"turns"`
}

func runGraphMode(path string, jsonOut bool) error {
	s, err := graph.LoadSession(path)
	if err != nil {
		return err
	}
	rep := graphReport{
		SessionID:   s.ID(),
		SubjectID:   s.SubjectID(),
		CreatedAt:   s.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
		Facts:       s.Len(),
		Evidence:    s.Evidence(),
		Categories:  evidence.Categorize(s),
		RiskFactors: s.RiskFactors(),
	}
	for _, st := range s.States() {
		rep.States = append(rep.States, stateRow{State: st, Description: ontology.Describe(st), DerivedBy: s.Derivations(st)})
	}
	perTurn := make(map[string]int)
	for _, item := range rep.Evidence {
		perTurn[item.Turn]++
	}
	for _, t := range s.Turns() {
		row := turnRow{Turn: t, Evidence: perTurn[t]}
		if refs := s.Objects(t, graph.PredAuditRef); len(refs) > 0 {
			row.AuditRef = refs[0]
		}
		rep.Turns = append(rep.Turns, row)
	}

	if jsonOut {
		return printJSON(rep)
	}
	printGraphReport(rep)
	return nil
}

func printGraphReport(rep graphReport) {
	fmt.Printf("Session %s  subject=%s  created=%s  facts=%d\n\n", rep.SessionID, rep.SubjectID, rep.CreatedAt, rep.Facts)

	fmt.Printf("%-8s| %-24s| %-11s| %-7s| %s\n", "ID", "Type", "Persistence", "Conf", "Turn")
	fmt.Printf("%-8s+%-25s+%-12s+%-8s+%s\n", "--------", "-------------------------", "------------", "--------", "------")
	for _, e := range rep.Evidence {
		fmt.Printf("%-8s| %-24s| %-11s| %-7s| %s\n", e.ID, e.Type, e.Persistence, dash(string(e.Confidence)), e.Turn)
	}

	c := rep.Categories
	fmt.Printf("\nEmotions:     %s\n", joinLabels(c.Emotions))
	fmt.Printf("Symptoms:     %s\n", joinLabels(c.Symptoms))
	fmt.Printf("Triggers:     %s\n", joinLabels(c.Triggers))
	fmt.Printf("Risk factors: %s\n\n", joinLabels(rep.RiskFactors))

	if len(rep.States) == 0 {
		fmt.Println("No derived states")
	}
	for _, st := range rep.States {
		fmt.Printf("  %-20s %-32s %s\n", st.State, st.Description, dash(strings.Join(st.DerivedBy, ", ")))
	}

	fmt.Println()
	for _, t := range rep.Turns {
		fmt.Printf("  %-8s evidence=%d audit=%s\n", t.Turn, t.Evidence, dash(t.AuditRef))
	}
}

// #endregion graph-mode

// #region index-mode

func runIndexMode(dbPath, subject string, jsonOut bool) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	sessions, err := st.PriorSessions(context.Background(), subject, "")
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintf(os.Stderr, "no sessions indexed for subject %s\n", subject)
		return nil
	}
	fmt.Printf("%-24s| %-20s| %-5s| %-12s| %s\n", "Session", "Created", "Turns", "LowContext", "Last audit")
	fmt.Printf("%-24s+%-21s+%-6s+%-13s+%s\n", "------------------------", "---------------------", "------", "-------------", "----------------")
	for _, e := range sessions {
		fmt.Printf("%-24s| %-20s| %-5d| %-12v| %s\n",
			e.SessionID, e.CreatedAt.Format("2006-01-02T15:04:05Z"), e.Turns, e.NeedsMoreContext, dash(e.LastAuditRef))
	}
	return nil
}

// #endregion index-mode

// #region helpers

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinLabels(ls []ontology.Label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return dash(strings.Join(parts, ", "))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers
