package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stemfetch/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the environment before running the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			failures := 0
			for _, result := range results {
				if !result.Passed {
					failures++
				}
				rows = append(rows, []string{result.Name, passFail(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Detail
				if !status.Available && status.Remediation != "" {
					detail = status.Remediation
				}
				if !status.Available && !status.Optional {
					failures++
				}
				depRows = append(depRows, []string{status.Name, passFail(status.Available), detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Status", "Detail"},
				depRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func passFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
