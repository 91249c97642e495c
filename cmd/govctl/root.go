package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type commandContext struct {
	server string
	client *http.Client
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{client: &http.Client{Timeout: 10 * time.Second}}

	rootCmd := &cobra.Command{
		Use:           "govctl",
		Short:         "Inspect and validate pulsegate governance sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", "http://localhost:8080", "pulsegate base URL")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newSnapshotCommand(ctx))
	return rootCmd
}
