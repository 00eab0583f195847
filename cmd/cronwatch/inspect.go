package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/deixis/cronwatch/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newInspectCmd(g *globals) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "Show a recorded run, or list recent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.StateDirectory()
			if dir == "" {
				return errors.New("runs are not recorded: set state_dir in the config file or CRONWATCH_STATE_DIR")
			}
			store := report.NewDiskStore(dir)
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				r, err := store.Load(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(r)
				}
				return report.Format(w, r)
			}

			ids, err := store.List()
			if err != nil {
				return err
			}
			if limit > 0 && len(ids) > limit {
				ids = ids[:limit]
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tKIND\tEXIT\tSUBJECT")
			for _, id := range ids {
				r, err := store.Load(id)
				if err != nil {
					g.logger.Debug("skipping unreadable run", zap.String("run_id", id), zap.Error(err))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Kind, r.ExitCode, r.Subject)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run record as JSON")
	return cmd
}
