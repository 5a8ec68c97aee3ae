package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		remove string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or delete recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if remove != "" {
				if err := st.DeleteRun(ctx, remove); err != nil {
					return fmt.Errorf("delete run %s: %w", remove, err)
				}
				notify(cmd, "Deleted run %s", remove)
				return nil
			}

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATTERN\tRANGE\tEVENTS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%s\n",
					r.ID, r.Pattern,
					r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly),
					humanize.Comma(int64(r.EventCount)),
					humanize.Time(r.CreatedAt),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 = all)")
	cmd.Flags().StringVar(&remove, "delete", "", "Delete the run with this ID")
	return cmd
}
