package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

const graphSuffix = ".graph.jsonl"

// #region main
func main() {
	dbPath := envOr("REASONER_DB", "reasoner.db")
	sessionDir := envOr("REASONER_SESSION_DIR", "sessions")

	fmt.Println("=== Session Index Bootstrap ===")
	fmt.Printf("  DB: %s | Sessions: %s\n", dbPath, sessionDir)

	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	paths, err := filepath.Glob(filepath.Join(sessionDir, "*"+graphSuffix))
	if err != nil {
		log.Fatalf("list sessions: %v", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		fmt.Println("No session graphs to index. Done.")
		return
	}

	ctx := context.Background()

	// Phase 1: index every readable graph
	fmt.Println("\n--- Phase 1: Session Index ---")
	var loaded []*graph.Session
	skipped := 0
	for i, path := range paths {
		s, err := graph.LoadSession(path)
		if err != nil {
			log.Printf("skip %s: %v", filepath.Base(path), err)
			skipped++
			continue
		}
		entry := store.SessionEntry{
			SessionID:        s.ID(),
			SubjectID:        s.SubjectID(),
			CreatedAt:        s.CreatedAt(),
			Turns:            len(s.Turns()),
			NeedsMoreContext: s.HasState(ontology.NeedsMoreContext),
			LastAuditRef:     s.LastAuditRef(),
		}
		if err := st.UpsertSession(ctx, entry); err != nil {
			log.Printf("index %s: %v", s.ID(), err)
			skipped++
			continue
		}
		loaded = append(loaded, s)

		if (i+1)%50 == 0 || i+1 == len(paths) {
			fmt.Printf("  [%d/%d] processed\n", i+1, len(paths))
		}
	}
	fmt.Printf("  Indexed: %d | Skipped: %d\n", len(loaded), skipped)

	// Phase 2: compare each graph's audit refs against the audit log
	fmt.Println("\n--- Phase 2: Audit Coverage ---")
	var missing, broken []string
	for _, s := range loaded {
		n, err := st.VerifyChain(ctx, s.ID())
		switch {
		case err != nil:
			broken = append(broken, fmt.Sprintf("%s (%v)", s.ID(), err))
		case n < len(s.Turns()):
			missing = append(missing, fmt.Sprintf("%s (%d of %d turns logged)", s.ID(), n, len(s.Turns())))
		}
	}
	fmt.Printf("  Complete: %d | Missing records: %d | Broken chains: %d\n",
		len(loaded)-len(missing)-len(broken), len(missing), len(broken))
	for _, m := range missing {
		fmt.Printf("    missing  %s\n", m)
	}
	for _, b := range broken {
		fmt.Printf("    broken   %s\n", b)
	}

	fmt.Println("\nDone.")
	if len(broken) > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
