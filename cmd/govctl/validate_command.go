package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pulsegate/internal/governance/engine"
	"pulsegate/internal/governance/sessionconfig"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a session config file without starting a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := sessionconfig.Load(args[0])
			if err != nil {
				return err
			}
			if err := file.Validate(); err != nil {
				return err
			}
			// Configure runs the same checks a live session would.
			eng, err := engine.Configure(file.GovernanceRule(), file.Roster, file.ZoneDefinitions(), engine.WithConfig(file.EngineConfig()))
			if err != nil {
				return err
			}
			eng.Teardown()

			rule := file.GovernanceRule()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok (rule %q, target %s, grace %s, warning %s)\n",
				args[0], rule.Label, rule.TargetZone, rule.GracePeriod, rule.WarningPeriod)

			rows := make([][]string, 0, len(file.Roster))
			for _, p := range file.Roster {
				target := rule.TargetZone
				if o, ok := rule.Overrides[p.ID]; ok {
					target = o.ZoneID
				}
				rows = append(rows, []string{p.ID, p.Name(), target, strconv.FormatBool(p.Active())})
			}
			fmt.Fprintln(out, renderTable([]string{"Participant", "Name", "Target", "Active"}, rows, nil))
			return nil
		},
	}
}
