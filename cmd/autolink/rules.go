package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joeychilson/autolink/rules"
)

func newRulesCmd() *cobra.Command {
	var orderOnly bool

	cmd := &cobra.Command{
		Use:   "rules [file]",
		Short: "Parse a rule list and print it normalized with its injection order",
		Long: `Rules reads "keyword|url" lines from a file or stdin. Malformed lines are
dropped, duplicate keywords keep their last URL, and the result is printed in
normalized form followed by the order rules are applied in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			set := rules.Parse(raw)
			out := cmd.OutOrStdout()

			if !orderOnly {
				fmt.Fprintf(out, "# %d rule(s)\n", len(set))
				if len(set) > 0 {
					fmt.Fprintln(out, set.String())
				}
				fmt.Fprintln(out, "# injection order")
			}
			for i, rule := range set.ByLength() {
				fmt.Fprintf(out, "%d. %s\n", i+1, rule.Keyword)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&orderOnly, "order", false, "print only the injection order")

	return cmd
}
