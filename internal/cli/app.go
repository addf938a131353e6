package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/botrunner/internal/control"
	"github.com/vietddude/botrunner/internal/core/config"
	"github.com/vietddude/botrunner/internal/core/worker"
	"github.com/vietddude/botrunner/internal/health"
	"github.com/vietddude/botrunner/internal/infra/device"
	"github.com/vietddude/botrunner/internal/infra/github"
	redisclient "github.com/vietddude/botrunner/internal/infra/redis"
	"github.com/vietddude/botrunner/internal/infra/storage"
	"github.com/vietddude/botrunner/internal/infra/storage/memory"
	"github.com/vietddude/botrunner/internal/infra/storage/postgres"
	"github.com/vietddude/botrunner/internal/integration/chat"
	"github.com/vietddude/botrunner/internal/integration/messaging"
	"github.com/vietddude/botrunner/internal/integration/web"
	"github.com/vietddude/botrunner/internal/mirror"
	"github.com/vietddude/botrunner/internal/recovery"
)

// stores bundles the persistence backends chosen by config.
type stores struct {
	runs     storage.RunRepository
	publish  storage.PublishRepository
	db       *postgres.DB
	redis    *redisclient.Client
	closeFns []func() error
}

func (s *stores) Close() {
	for _, fn := range s.closeFns {
		_ = fn()
	}
}

// openStores uses postgres and redis when configured, memory otherwise.
func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	s := &stores{}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.runs = postgres.NewRunRepo(db)
		s.publish = postgres.NewPublishRepo(db)
		s.closeFns = append(s.closeFns, db.Close)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		s.runs = memory.NewRunRepo(store)
		s.publish = memory.NewPublishRepo(store)
		slog.Info("Using in-memory storage")
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = rc
		s.closeFns = append(s.closeFns, rc.Close)
	}

	return s, nil
}

// newMirror builds the change-detecting publisher for cfg.GitHub.
func newMirror(cfg *config.AppConfig, s *stores) (*mirror.Service, error) {
	publisher, err := github.NewPublisher(github.Options{BaseURL: cfg.GitHub.BaseURL})
	if err != nil {
		return nil, err
	}

	opts := []mirror.Option{mirror.WithRecords(s.publish)}
	if s.redis != nil {
		opts = append(opts, mirror.WithCache(s.redis))
	}
	return mirror.NewService(cfg.GitHub, publisher, opts...), nil
}

// app is the assembled bot process.
type app struct {
	supervisor *control.Supervisor
	stores     *stores
}

func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	s, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	slots := control.NewSlots()

	newTask := func() control.AutomationTask {
		return device.NewLink(cfg.Device, logger)
	}

	// The web client reports supervisor state, which exists only after the
	// supervisor is built.
	var sup *control.Supervisor
	stateFn := func() string {
		if sup == nil {
			return ""
		}
		return string(sup.State())
	}

	var integrations []control.Integration
	if cfg.Twitch.Enabled {
		integrations = append(integrations, chat.NewClient(cfg.Twitch, slots, logger))
	}
	if cfg.Web.Enabled {
		integrations = append(integrations, web.NewClient(cfg.Web, slots, stateFn, logger))
	}
	if cfg.GitHub.PushEnabled {
		svc, err := newMirror(cfg, s)
		if err != nil {
			s.Close()
			return nil, err
		}
		integrations = append(integrations, mirror.NewWatcher(svc, cfg.GitHub.SourceFile, cfg.GitHub.Interval, logger))
	}

	if cfg.History.Retention > 0 {
		integrations = append(integrations, worker.NewPruner(cfg.History.Retention, s.runs, s.publish, logger))
	}

	policy := recovery.DefaultPolicy(recovery.Classify)
	policy.RestartDelay = cfg.Supervisor.RestartDelay
	policy.MaxConnectivityFailures = cfg.Supervisor.MaxConnectivityFailures

	deps := control.Dependencies{
		NewTask:      newTask,
		Integrations: integrations,
		Runs:         s.runs,
		Slots:        slots,
		Logger:       logger,
	}
	if cfg.Discord.Enabled {
		deps.NewMessenger = messaging.NewFactory(cfg.Discord, logger)
	}

	sup, err = control.NewSupervisor(control.Config{
		MessagingEnabled: cfg.Discord.Enabled,
		MessagingToken:   cfg.Discord.Token,
		SkipTask:         cfg.SkipTask,
		Policy:           policy,
	}, deps)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create supervisor: %w", err)
	}

	monitor := health.NewMonitor(sup)
	if s.db != nil {
		monitor.AddCheck("database", s.db.Health)
		s.db.StartMetricsCollector(ctx)
	}
	sup.AddIntegration(health.NewServer(monitor, cfg.Server.Port))

	return &app{supervisor: sup, stores: s}, nil
}
