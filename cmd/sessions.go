package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions on a running daemon",
	}
	cmd.AddCommand(sessionsCreateCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	cmd.AddCommand(sessionsInjectCmd())
	cmd.AddCommand(sessionsConversationCmd())
	return cmd
}

func sessionsCreateCmd() *cobra.Command {
	var sessionContext string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			err = client.do("POST", "/sessions", map[string]string{
				"name":    args[0],
				"context": sessionContext,
			}, &out)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&sessionContext, "context", "", "initial session context")
	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			path := "/sessions/" + url.PathEscape(args[0])
			if reason != "" {
				path += "?reason=" + url.QueryEscape(reason)
			}
			var out map[string]interface{}
			if err := client.do("DELETE", path, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded for the deletion")
	return cmd
}

func sessionsInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject <name> <message>",
		Short: "Inject a message into a session and wait for the reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			path := "/sessions/" + url.PathEscape(args[0]) + "/inject"
			if err := client.do("POST", path, map[string]string{"message": args[1]}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	return cmd
}

func sessionsConversationCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "conversation <name>",
		Short: "Print a session's conversation log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			path := "/sessions/" + url.PathEscape(args[0]) + "/conversation"
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}
			var out []map[string]interface{}
			if err := client.do("GET", path, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries to return (0 = all)")
	return cmd
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
