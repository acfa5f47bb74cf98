package cmd

import (
	"net/url"

	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys on a running daemon",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	return cmd
}

func keysCreateCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key (the raw secret is printed exactly once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			err = client.do("POST", "/api/keys", map[string]string{
				"name":  args[0],
				"scope": scope,
			}, &out)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "read-only", "key scope: 'full' or 'read-only'")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			if err := client.do("GET", "/api/keys", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			var out map[string]interface{}
			path := "/api/keys/" + url.PathEscape(args[0])
			if err := client.do("DELETE", path, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
