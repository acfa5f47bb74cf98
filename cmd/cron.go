package cmd

import (
	"net/url"

	"github.com/spf13/cobra"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage cron jobs on a running daemon",
	}
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronCreateCmd())
	cmd.AddCommand(cronDeleteCmd())
	cmd.AddCommand(cronHistoryCmd())
	return cmd
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			if err := client.do("GET", "/crons", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func cronCreateCmd() *cobra.Command {
	var name, schedule, session, message string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a cron job",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			err = client.do("POST", "/crons", map[string]string{
				"name":     name,
				"schedule": schedule,
				"session":  session,
				"message":  message,
			}, &out)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "job name (required)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression or RFC3339 one-shot time (required)")
	cmd.Flags().StringVar(&session, "session", "", "target session (required)")
	cmd.Flags().StringVar(&message, "message", "", "message to inject on fire")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("schedule")
	cmd.MarkFlagRequired("session")
	return cmd
}

func cronDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a cron job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			path := "/crons/" + url.PathEscape(args[0])
			if err := client.do("DELETE", path, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func cronHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show recent cron fire history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			if err := client.do("GET", "/crons/history", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
