package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

// initCmd interactively writes a starter config.json, mirroring goclaw's
// onboarding flow but scaled to WOPR's smaller configuration surface
// (provider, default model, enforcement mode, managed mode).
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		var overwrite bool
		confirm := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", cfgPath)).
			Value(&overwrite)
		if err := confirm.Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("aborted")
			return nil
		}
	}

	cfg := config.Default()

	var provider, model, enforcement string
	var managed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary provider").
				Options(
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenAI", "openai"),
				).
				Value(&provider),
			huh.NewInput().
				Title("Default model (blank = provider default)").
				Value(&model),
			huh.NewSelect[string]().
				Title("Security enforcement mode").
				Options(
					huh.NewOption("warn (log violations, allow)", "warn"),
					huh.NewOption("enforce (deny violations)", "enforce"),
					huh.NewOption("off (no checks)", "off"),
				).
				Value(&enforcement),
			huh.NewConfirm().
				Title("Use managed mode (shared Postgres database)?").
				Value(&managed),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("onboarding form: %w", err)
	}

	cfg.Providers.Entries[provider] = config.ProviderOptions{Model: model}
	cfg.Security.Enforcement = enforcement
	if managed {
		cfg.Database.Mode = "managed"
		fmt.Println("managed mode selected: set WOPR_POSTGRES_DSN before running `wopr serve`")
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("wrote %s\n", cfgPath)
	return nil
}
