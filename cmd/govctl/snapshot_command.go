package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pulsegate/internal/governance/models"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <session-id>",
		Short: "Show the lock screen for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap models.Snapshot
			if err := ctx.getJSON(cmd.Context(), "/governance/sessions/"+args[0]+"/snapshot", &snap); err != nil {
				return err
			}
			writeSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func writeSnapshot(out io.Writer, snap models.Snapshot) {
	playback := "paused"
	if snap.PlaybackPermitted {
		playback = "playing"
	}
	fmt.Fprintf(out, "status: %s (seq %d, playback %s)\n", snap.Status, snap.Seq, playback)
	if snap.Content != nil {
		fmt.Fprintf(out, "content: %s\n", snap.Content.ID)
	}
	if snap.Deadline != nil {
		fmt.Fprintf(out, "deadline: %s\n", snap.Deadline.Format(time.RFC3339))
	}
	if len(snap.LockRows) == 0 {
		return
	}

	rows := make([][]string, 0, len(snap.LockRows))
	for _, row := range snap.LockRows {
		current := row.CurrentZoneLabel
		if current == "" {
			current = "-"
		}
		hr := "-"
		if row.HeartRate > 0 {
			hr = strconv.Itoa(row.HeartRate)
		}
		hold := ""
		if row.ChallengeTarget > 0 {
			hold = fmt.Sprintf("%d/%d", row.ChallengeProgress, row.ChallengeTarget)
		}
		flag := ""
		if row.IsOffender {
			flag = "offender"
		}
		rows = append(rows, []string{row.DisplayName, row.TargetZoneLabel, current, hr, hold, flag})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Participant", "Target", "Current", "HR", "Hold", ""},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}
