package commands

import (
	"context"

	"github.com/systmms/vaultstore/internal/config"
	"github.com/systmms/vaultstore/internal/credentials"
	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/keystore"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/session"
	"github.com/systmms/vaultstore/internal/vault"
)

// App holds the state shared by all commands
type App struct {
	ConfigPath string
	Logger     *logging.Logger

	// Credentials resolves references in the configuration; nil uses the
	// environment, files and the system keyring
	Credentials *credentials.Resolver
}

// Env is an opened store with its session
type Env struct {
	Config  *config.Config
	Client  *vault.APIClient
	Session *session.Manager
	Store   *keystore.Store
}

// Close ends the session
func (e *Env) Close() {
	e.Session.Close()
}

// Open loads the configuration, logs in and builds the store
func (a *App) Open(ctx context.Context) (*Env, error) {
	logger := a.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	opts, err := cfg.VaultOptions(a.Credentials, logger, recorder)
	if err != nil {
		return nil, err
	}

	client, err := vault.NewClient(opts)
	if err != nil {
		return nil, err
	}

	mgr := session.New(client, cfg.Margin(), logger, recorder)
	if err := mgr.Login(ctx); err != nil {
		return nil, dserrors.VaultError(cfg.Address, cfg.Auth.Method+" login", err)
	}
	logger.Debug("Logged in to %s with %s auth", cfg.Address, cfg.Auth.Method)

	storeOpts := cfg.StoreOptions(logger, recorder)
	storeOpts.Session = mgr

	return &Env{
		Config:  cfg,
		Client:  client,
		Session: mgr,
		Store:   keystore.New(client, storeOpts),
	}, nil
}
