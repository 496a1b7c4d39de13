package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/calsync/internal/adapters/driven/auth"
	configfile "github.com/custodia-labs/calsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/calsync/internal/adapters/driven/google"
	googleoauth "github.com/custodia-labs/calsync/internal/adapters/driven/oauth"
	"github.com/custodia-labs/calsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/calsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/calsync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/calsync/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configfile.Load("")
	if err != nil {
		return err
	}

	if cfg.EncryptionKey == "" {
		// Informational commands still work without an engine.
		fmt.Fprintln(os.Stderr, "warning: CALSYNC_ENCRYPTION_KEY not set; sync services are disabled")
		return cli.Execute()
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	accounts := store.AccountStore()
	events := store.EventMirrorStore()
	tasks := store.TaskMirrorStore()

	provider := googleoauth.NewProvider(googleoauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Scopes:       cfg.OAuth.Scopes,
	})

	authManager, err := services.NewAuthManager(key, accounts, provider)
	if err != nil {
		return err
	}

	factory := google.NewFactory()
	engine := services.NewSyncEngine(accounts, events, tasks, factory, authManager, services.SyncEngineConfig{
		Lookback:  cfg.Lookback(),
		Lookahead: cfg.Lookahead(),
	})
	scheduler := services.NewScheduler(accounts, engine, cfg.SyncInterval())
	writeback := services.NewWriteBack(tasks, factory, authManager)

	redirectURL := cfg.OAuth.RedirectURL
	if redirectURL == "" {
		redirectURL = fmt.Sprintf("http://%s/api/v1/auth/google/callback", cfg.ListenAddr)
	}
	scopes := cfg.OAuth.Scopes
	if len(scopes) == 0 {
		scopes = googleoauth.DefaultScopes
	}

	server := httpapi.NewServer(
		httpapi.Config{
			Addr:        cfg.ListenAddr,
			RedirectURL: redirectURL,
			Scopes:      scopes,
		},
		accounts, events, tasks, scheduler, writeback, provider,
		auth.NewStaticAuthorizer(cfg.AuthToken), authManager,
	)

	cli.Configure(cli.Deps{
		Accounts:  accounts,
		Scheduler: scheduler,
		Server:    server,
	})

	return cli.Execute()
}
