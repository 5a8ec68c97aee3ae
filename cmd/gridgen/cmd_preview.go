package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gridgen/internal/config"
	"gridgen/internal/pattern"
	"gridgen/internal/planner"
	"gridgen/internal/preview"
)

func newPatternsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List built-in and custom patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Activity levels:")
			var legacy []pattern.Descriptor
			for _, d := range pattern.Presets() {
				if d.Legacy {
					legacy = append(legacy, d)
					continue
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", d.Name, d.Description, d.Volume)
			}
			fmt.Fprintln(w, "\nLegacy patterns:")
			for _, d := range legacy {
				fmt.Fprintf(w, "  %s\t%s\t\n", d.Name, d.Description)
			}
			if custom := a.planner.Registry().Custom(); len(custom) > 0 {
				fmt.Fprintln(w, "\nCustom patterns:")
				for _, name := range custom {
					cfg, _ := a.planner.Registry().Lookup(name)
					fmt.Fprintf(w, "  %s\t%s intensity\t\n", name, cfg.Intensity)
				}
			}
			return w.Flush()
		},
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var start, end, name string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show a calendar heatmap and summary for a pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := a.parseDate("start", start)
			if err != nil {
				return err
			}
			to, err := a.parseDate("end", end)
			if err != nil {
				return err
			}
			res, err := a.planner.Plan(cmd.Context(), planner.Request{Pattern: name, Start: from, End: to})
			if err != nil {
				return err
			}
			p := preview.NewPrinter(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Pattern: %s\n\n", res.Pattern)
			if err := p.Calendar(res.Schedule.Events, from, to); err != nil {
				return err
			}
			return p.Summary(preview.Summarize(res.Schedule.Events))
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&name, "pattern", "p", "", "Preset or custom pattern (default from config)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newCalibrateCmd(_ *app) *cobra.Command {
	var target, days int
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Print the pattern derived for a target total over a number of days",
		Long: `Print the pattern config calibrate would use. The output is a valid
entry for the patterns section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target < 0 {
				return errors.New("--target-total must be non-negative")
			}
			cfg, err := pattern.Calibrate(target, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %d events over %d days, damped rate %.2f/day\n", target, days, pattern.DampedRate(target, days))
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string]config.PatternSpec{planner.TargetPatternName(target): config.SpecFrom(cfg)}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().IntVar(&target, "target-total", 0, "Target number of events")
	cmd.Flags().IntVar(&days, "days", 365, "Days in the range")
	return cmd
}
