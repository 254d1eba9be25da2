package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

var auditSession string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and verify the audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify every record hash and prev_hash link of a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.VerifyChain(cmd.Context(), auditSession)
		var ce *audit.ChainError
		if errors.As(err, &ce) {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s at %s: %s\n", ce.SessionID, ce.Turn, ce.Reason)
			return err
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no audit records for session %s", auditSession)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK %s: %d record(s) verified\n", auditSession, n)
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a session's audit records as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.Records(cmd.Context(), auditSession)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

func init() {
	auditCmd.PersistentFlags().StringVar(&auditSession, "session", "", "session id")
	_ = auditCmd.MarkPersistentFlagRequired("session")
	auditCmd.AddCommand(auditVerifyCmd, auditShowCmd)
}

func openStore() (*store.Store, error) {
	if cfg.Store.DatabasePath == "" {
		return nil, errors.New("audit log disabled: set store.database_path or --db")
	}
	return store.NewStore(cfg.Store.DatabasePath)
}
