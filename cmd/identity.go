package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/identity"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/store/filestore"
	"github.com/nextlevelbuilder/wopr/internal/store/pgstore"
)

// identityCmd manages the daemon's own P2P keypair directly against the
// store, bypassing the HTTP surface: identity material is bootstrap-time,
// not a dispatch-time concern (spec §3, §6.3).
func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or rotate the daemon's P2P identity",
	}
	cmd.AddCommand(identityShowCmd())
	cmd.AddCommand(identityRotateCmd())
	return cmd
}

func openIdentityStore() (store.IdentityStore, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.IsManagedMode() {
		db, err := pgstore.OpenDB(context.Background(), cfg.Database.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return pgstore.NewIdentityStore(db), nil
	}
	return filestore.NewIdentityStore(config.IdentityDir()), nil
}

func identityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current identity's public keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			identityStore, err := openIdentityStore()
			if err != nil {
				return err
			}
			mgr, err := identity.New(context.Background(), identityStore, nil)
			if err != nil {
				return fmt.Errorf("load identity: %w", err)
			}
			current := mgr.Current()
			fmt.Printf("signPub:    %s\n", current.SignPub)
			fmt.Printf("encryptPub: %s\n", current.EncryptPub)
			fmt.Printf("created:    %s\n", current.Created.Format("2006-01-02T15:04:05Z07:00"))
			if current.RotatedFrom != "" {
				fmt.Printf("rotatedFrom: %s\n", current.RotatedFrom)
			}
			return nil
		},
	}
}

func identityRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Generate and activate a new keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			identityStore, err := openIdentityStore()
			if err != nil {
				return err
			}
			mgr, err := identity.New(context.Background(), identityStore, nil)
			if err != nil {
				return fmt.Errorf("load identity: %w", err)
			}
			fresh, err := mgr.Rotate(context.Background())
			if err != nil {
				return fmt.Errorf("rotate identity: %w", err)
			}
			fmt.Printf("rotated. new signPub: %s\n", fresh.SignPub)
			return nil
		},
	}
}
