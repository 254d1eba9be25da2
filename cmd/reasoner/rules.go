package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/session-reasoner/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [file]",
	Short: "Compile a rule table and list its rules",
	Long: `Compiles the rule table (the given file, the configured one, or the
embedded default) with full validation and prints each rule.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Rules.Path
		if len(args) == 1 {
			path = args[0]
		}
		var (
			t   *rules.Table
			err error
		)
		if path == "" {
			t, err = rules.Default()
		} else {
			t, err = rules.LoadFile(path)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source=%s digest=%s max_passes=%d rules=%d\n\n", t.Source, t.Digest, t.MaxPasses, len(t.Rules))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTHEN\tDESCRIPTION")
		for _, r := range t.Rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Then.Label, r.Description)
		}
		return tw.Flush()
	},
}
