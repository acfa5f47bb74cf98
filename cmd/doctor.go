package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wopr/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("wopr doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults will be used)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Home:")
	checkDir("  WOPR_HOME", config.Home())
	checkDir("  Identity dir", config.IdentityDir())

	if cfg.IsManagedMode() {
		fmt.Println()
		fmt.Println("  Database:")
		fmt.Printf("    %-12s managed\n", "Mode:")
		checkManagedDatabase(cfg.Database.PostgresDSN)
	} else {
		fmt.Println()
		fmt.Println("  Database:")
		fmt.Printf("    %-12s file (JSON store + auth.sqlite under WOPR_HOME)\n", "Mode:")
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkConfiguredProviders(cfg)

	fmt.Println()
	fmt.Println("  MCP servers:")
	checkConfiguredMCPServers(cfg)

	fmt.Println()
	fmt.Println("  Security:")
	fmt.Printf("    %-14s %s\n", "Enforcement:", cfg.Enforcement())

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkDir(label, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("    %-14s %s (NOT FOUND — created on first run)\n", label+":", path)
		return
	}
	fmt.Printf("    %-14s %s (OK)\n", label+":", path)
}

// checkManagedDatabase pings the configured Postgres DSN and reports the
// current golang-migrate schema version, adapted from goclaw's
// upgrade.CheckSchema (which WOPR has no equivalent migration-compat
// table for, so this reports raw version/dirty state only).
func checkManagedDatabase(dsn string) {
	if dsn == "" {
		fmt.Printf("    %-12s WOPR_POSTGRES_DSN is not set\n", "Status:")
		return
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	fmt.Printf("    %-12s connected\n", "Status:")

	var version int
	var dirty bool
	row := db.QueryRowContext(context.Background(), "SELECT version, dirty FROM schema_migrations LIMIT 1")
	if err := row.Scan(&version, &dirty); err != nil {
		fmt.Printf("    %-12s no migrations applied yet — run: wopr migrate up\n", "Schema:")
		return
	}
	if dirty {
		fmt.Printf("    %-12s v%d (DIRTY — run: wopr migrate force %d)\n", "Schema:", version, version-1)
		return
	}
	fmt.Printf("    %-12s v%d\n", "Schema:", version)
}

// checkConfiguredProviders masks each configured provider's credential the
// same way goclaw's checkProvider does, reading from the environment since
// credentials never live in config.json (spec §6.4).
func checkConfiguredProviders(cfg *config.Config) {
	ids := make([]string, 0, len(cfg.Providers.Entries))
	for id := range cfg.Providers.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		fmt.Println("    (none configured)")
		return
	}
	for _, id := range ids {
		checkProvider(id, providerAPIKeyFromEnv(id))
	}
}

func providerAPIKeyFromEnv(id string) string {
	switch id {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv(providerEnvVar(id))
	}
}

// checkConfiguredMCPServers lists every configured MCP server and whether
// it's enabled; actual connection status requires a running daemon and is
// available via `wopr serve`'s GET /mcp/servers instead.
func checkConfiguredMCPServers(cfg *config.Config) {
	names := make([]string, 0, len(cfg.MCP.Servers))
	for name := range cfg.MCP.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Println("    (none configured)")
		return
	}
	for _, name := range names {
		srv := cfg.MCP.Servers[name]
		status := "enabled"
		if srv.Disabled {
			status = "disabled"
		}
		fmt.Printf("    %-14s %s (%s)\n", name+":", srv.Transport, status)
	}
}

func checkProvider(name, apiKey string) {
	if apiKey == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	masked := apiKey
	if len(apiKey) > 8 {
		masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}
