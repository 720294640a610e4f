package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/graphgate/internal/config"
	"github.com/iambrandonn/graphgate/internal/engine"
	"github.com/iambrandonn/graphgate/internal/fallback"
	"github.com/iambrandonn/graphgate/internal/gateway"
	"github.com/iambrandonn/graphgate/internal/health"
	"github.com/iambrandonn/graphgate/internal/observability"
	"github.com/iambrandonn/graphgate/internal/supervisor"
)

// app bundles everything a subcommand needs, constructed once per
// invocation from the loaded config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadApp resolves --config, loads or generates the configuration, and
// builds the logger. A missing config file is generated with defaults so
// a fresh checkout works without ceremony.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = config.DefaultFileName
	}

	var cfg *config.Config
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.GenerateDefault()
		if err := cfg.SaveToFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel)
	logger.Info("loaded configuration", "path", path)
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) client() *engine.Client {
	return engine.New(engine.Options{
		SocketPath:     a.cfg.SocketPath,
		ConnectTimeout: a.cfg.ConnectTimeout(),
		SendTimeout:    a.cfg.SendTimeout(),
		RecvTimeout:    a.cfg.RecvTimeout(),
	}, a.logger)
}

func (a *app) gateway() *gateway.Gateway {
	fb := fallback.New(a.cfg.Fallback.Cmd, a.cfg.FallbackTimeout(), a.logger)
	return gateway.New(a.client(), fb, a.logger)
}

func (a *app) prober() *health.Prober {
	return health.New(a.cfg.SocketPath, a.cfg.ProbeTimeout(), a.logger)
}

func (a *app) supervisor() *supervisor.Supervisor {
	return supervisor.New(supervisor.Options{
		SocketPath:   a.cfg.SocketPath,
		LogPath:      a.cfg.LogPath,
		PIDPath:      a.cfg.PIDPath,
		LockPath:     a.cfg.LockPath,
		EngineCmd:    a.cfg.Engine.Cmd,
		ReadyMarker:  a.cfg.Engine.ReadyMarker,
		ReadyTimeout: a.cfg.ReadyTimeout(),
		PollInterval: a.cfg.PollInterval(),
		StopGrace:    a.cfg.StopGrace(),
		LogTailLines: a.cfg.Engine.LogTailLines,
		Client:       a.client(),
	}, a.logger)
}
