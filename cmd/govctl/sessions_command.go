package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pulsegate/internal/governance/handler"
	"pulsegate/internal/governance/service"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions configured on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp handler.SessionListResponse[service.SessionInfo]
			if err := ctx.getJSON(cmd.Context(), "/governance/sessions", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(out, "no sessions")
				return nil
			}
			rows := make([][]string, 0, len(resp.Sessions))
			for _, s := range resp.Sessions {
				rows = append(rows, []string{
					s.ID,
					s.RuleLabel,
					s.TargetZone,
					strconv.Itoa(s.Participants),
					s.ConfiguredAt.Format(time.RFC3339),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Rule", "Target", "Participants", "Configured"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
