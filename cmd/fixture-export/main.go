package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
	"github.com/danielpatrickdp/session-reasoner/internal/replay"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the audit log database")
	session := flag.String("session", "", "export the turns of one session")
	subject := flag.String("subject", "", "export every session of a subject (keeps cross-session context)")
	last := flag.Int("last", 0, "keep only the N most recent turns (0 = all)")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" || (*session == "") == (*subject == "") {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/reasoner.db (--session S | --subject U) --out fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(context.Background(), *dbPath, *session, *subject, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(ctx context.Context, dbPath, session, subject string, last int, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	var (
		recs []audit.Record
		desc string
	)
	if session != "" {
		if _, err := st.VerifyChain(ctx, session); err != nil {
			return err
		}
		recs, err = st.Records(ctx, session)
		desc = fmt.Sprintf("session %s", session)
	} else {
		recs, err = st.SubjectRecords(ctx, subject)
		desc = fmt.Sprintf("subject %s", subject)
	}
	if err != nil {
		return fmt.Errorf("query audit log: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("no audit records for %s", desc)
	}
	if last > 0 && len(recs) > last {
		// a trimmed history replays without its earlier turns, so audit refs
		// will not reproduce; outcomes still are compared
		recs = recs[len(recs)-last:]
		desc += fmt.Sprintf(", last %d turns", last)
	}

	fmt.Printf("Found %d audit records\n", len(recs))

	f, err := replay.FromRecords("exported from "+desc, recs)
	if err != nil {
		return err
	}
	if last > 0 {
		for i := range f.Turns {
			f.Turns[i].Expected.AuditRef = ""
		}
	}
	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d turns)\n", outPath, len(f.Turns))
	return nil
}

// #endregion extract
