package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/config"
	"github.com/nextlevelbuilder/wopr/internal/cron"
	"github.com/nextlevelbuilder/wopr/internal/dispatch"
	"github.com/nextlevelbuilder/wopr/internal/httpapi"
	"github.com/nextlevelbuilder/wopr/internal/identity"
	"github.com/nextlevelbuilder/wopr/internal/mcp"
	"github.com/nextlevelbuilder/wopr/internal/p2p"
	"github.com/nextlevelbuilder/wopr/internal/providers"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/store/filestore"
	"github.com/nextlevelbuilder/wopr/internal/store/pgstore"
	"github.com/nextlevelbuilder/wopr/internal/tools"
)

// serveCmd boots the WOPR daemon: load config, open the store backend,
// wire C1-C8 together, and serve the management surface until signalled.
// Grounded on goclaw's cmd/gateway.go runGateway build order (stores,
// identity, kernel, registry, tools, dispatcher, queue, scheduler, server).
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WOPR daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendCfg := store.BackendConfig{
		Home:         config.Home(),
		IdentityDir:  config.IdentityDir(),
		AuthSqlite:   filepath.Join(config.Home(), "auth.sqlite"),
		Managed:      cfg.IsManagedMode(),
		PostgresDSN:  cfg.Database.PostgresDSN,
		MigrationDir: existingMigrationsDir(),
	}
	if err := store.ValidateBackendConfig(backendCfg); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}

	var opener store.Opener
	if backendCfg.Managed {
		opener = pgstore.Backend{}
	} else {
		opener = filestore.Backend{}
		if err := os.MkdirAll(backendCfg.Home, 0755); err != nil {
			return fmt.Errorf("create home dir: %w", err)
		}
	}
	stores, err := opener.Open(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("open store backend: %w", err)
	}

	eventBus := bus.New()
	recorder := bus.NewRecorder(eventRecorderCapacity(cfg))
	recorder.Attach(eventBus, "serve.recorder")

	idMgr, err := identity.New(ctx, stores.Identity, eventBus)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	slog.Info("identity loaded", "signPub", idMgr.Current().SignPub)

	kernel := security.NewKernel(cfg, stores.Peers, eventBus, security.NoopSandbox{})

	registry := providers.NewRegistry()
	registerConfiguredProviders(registry, cfg)
	registry.CheckHealth(ctx)

	toolReg := tools.NewRegistry()
	policy := tools.NewPolicyEngine(&cfg.Tools, kernel)

	d := dispatch.New(stores.Sessions, kernel, registry, toolReg, policy, eventBus, eventBus, cfg)
	registerCoreTools(toolReg, cfg, stores, eventBus, recorder, kernel, d)
	qm := d.Bootstrap(eventBus)
	defer qm.StopReaper()
	qm.StartReaper(time.Minute, 30*time.Minute)

	scheduler := cron.NewScheduler(stores.Cron, kernel, cfg, d.InjectAndWait)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	_ = p2p.NewProcessor(idMgr, stores.Peers)

	mcpMgr := mcp.NewManager(toolReg, cfg.MCP.Servers)
	mcpMgr.Start(ctx)
	defer mcpMgr.Stop()

	server := httpapi.New(httpapi.Deps{
		Config:     cfg,
		Dispatcher: d,
		Sessions:   stores.Sessions,
		CronStore:  stores.Cron,
		Scheduler:  scheduler,
		Registry:   registry,
		Kernel:     kernel,
		Policy:     policy,
		Tools:      toolReg,
		ApiKeys:    stores.ApiKeys,
		Peers:      stores.Peers,
		EventPub:   eventBus,
		MCP:        mcpMgr,
	})

	watchErr := config.Watch(ctx, resolveConfigPath(), func(fresh *config.Config) {
		cfg.ReplaceFrom(fresh)
		slog.Info("config reloaded")
	})
	if watchErr != nil {
		slog.Warn("config watch disabled", "error", watchErr)
	}

	return server.Start(ctx)
}

// existingMigrationsDir resolves the migrations directory the same way
// `wopr migrate` does, but only hands it to the store backend when it
// actually exists: serve should run against a database whose schema
// migrations were never shipped (e.g. the default file-backed mode)
// without erroring on a missing directory.
func existingMigrationsDir() string {
	dir := resolveMigrationsDir()
	if dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); err != nil {
		return ""
	}
	return dir
}

func eventRecorderCapacity(cfg *config.Config) int {
	if cfg.Cron.HistoryCapacity > 0 {
		return cfg.Cron.HistoryCapacity
	}
	return 500
}

// registerConfiguredProviders registers a provider client for every entry
// in cfg.Providers whose API key environment variable is set, following
// goclaw's "credentials come from the environment, overrides come from
// config" split (doctor.go's checkProvider masking convention).
func registerConfiguredProviders(registry *providers.Registry, cfg *config.Config) {
	for id, opts := range cfg.Providers.Entries {
		switch id {
		case "anthropic":
			apiKey := os.Getenv("ANTHROPIC_API_KEY")
			if apiKey == "" {
				continue
			}
			var clientOpts []providers.AnthropicOption
			if opts.Model != "" {
				clientOpts = append(clientOpts, providers.WithAnthropicModel(opts.Model))
			}
			registry.Register(providers.NewAnthropicClient(apiKey, clientOpts...))
		case "openai":
			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				continue
			}
			model := opts.Model
			if model == "" {
				model = "gpt-4o"
			}
			registry.Register(providers.NewOpenAIClient("openai", apiKey, "https://api.openai.com", model))
		default:
			apiKey := os.Getenv(providerEnvVar(id))
			if apiKey == "" {
				continue
			}
			model := opts.Model
			if model == "" {
				model = id
			}
			registry.Register(providers.NewOpenAIClient(id, apiKey, openAICompatBaseURL(opts), model))
		}
	}
}

func providerEnvVar(id string) string {
	return "WOPR_PROVIDER_" + upperSnake(id) + "_API_KEY"
}

func upperSnake(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

func openAICompatBaseURL(opts config.ProviderOptions) string {
	if v, ok := opts.Options["baseURL"].(string); ok && v != "" {
		return v
	}
	return "https://api.openai.com"
}

// registerCoreTools registers WOPR's static tool set (spec §4.5), the
// same Registry.Register entry point the MCP bridge uses for dynamic
// servers.
func registerCoreTools(reg *tools.Registry, cfg *config.Config, stores *store.Stores, publisher *bus.Bus, recorder *bus.Recorder, kernel *security.Kernel, d *dispatch.Dispatcher) {
	reg.Register(tools.NewSessionsListTool(stores.Sessions))
	reg.Register(tools.NewSessionsHistoryTool(stores.Sessions))
	reg.Register(tools.NewSessionsSpawnTool(stores.Sessions))
	reg.Register(tools.NewSessionsSendTool(stores.Sessions, func(ctx context.Context, session, message string) error {
		return d.InjectAndWait(ctx, session, message, security.InjectionSource{Type: security.SourceInternal})
	}))

	reg.Register(tools.NewCronCreateTool(stores.Cron, cfg, kernel))
	reg.Register(tools.NewCronDeleteTool(stores.Cron))
	reg.Register(tools.NewCronListTool(stores.Cron))
	reg.Register(tools.NewCronHistoryTool(stores.Cron))

	reg.Register(tools.NewEventEmitTool(publisher))
	reg.Register(tools.NewEventListTool(recorder))
	reg.Register(tools.NewNotifyTool(publisher))

	reg.Register(tools.NewConfigGetTool(cfg))
	reg.Register(tools.NewConfigSetTool(cfg))
	reg.Register(tools.NewConfigProviderDefaultsTool(cfg))

	reg.Register(tools.NewMemoryReadTool(stores.Memory))
	reg.Register(tools.NewMemoryGetTool(stores.Memory))
	reg.Register(tools.NewMemorySearchTool(stores.Memory))
	reg.Register(tools.NewMemoryWriteTool(stores.Memory))
	reg.Register(tools.NewSelfReflectTool(stores.Memory))
	reg.Register(tools.NewIdentityGetTool(stores.Memory))
	reg.Register(tools.NewIdentityUpdateTool(stores.Memory))
	reg.Register(tools.NewSoulGetTool(stores.Memory))
	reg.Register(tools.NewSoulUpdateTool(stores.Memory))

	reg.Register(tools.NewSecurityWhoamiTool())
	reg.Register(tools.NewSecurityCheckTool(kernel))

	reg.Register(tools.NewHttpFetchTool())
	reg.Register(tools.NewExecCommandTool(config.Home()))
}
