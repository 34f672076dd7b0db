package cli

import (
	"context"
	"fmt"
	"time"

	"project_supportbot/internal/config"
	"project_supportbot/internal/infrastructure"
	"project_supportbot/internal/observability"
	"project_supportbot/internal/repository"
	"project_supportbot/internal/usecases"
)

const settingsTimeout = 2 * time.Second

// app is the wiring shared by serve and chat
type app struct {
	cfg       *config.Config
	dashboard *usecases.DashboardUsecase
	session   *usecases.ConversationService
	closers   []func()
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	settings, err := a.openSettings(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dashboard = usecases.NewDashboardUsecase(settings)

	classifier, err := buildClassifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := repository.NewMessageStore(a.dashboard.WelcomeMessage(ctx))
	a.session = usecases.NewConversationService(store, classifier, usecases.ConversationOptions{
		ReplyDelay:  cfg.ReplyDelay,
		Performance: a.performance,
	})
	observability.Component("app").Info("conversation ready",
		"session_id", a.session.ID(),
		"settings_backend", cfg.SettingsBackend,
		"reply_delay", cfg.ReplyDelay.String(),
	)
	return a, nil
}

func (a *app) openSettings(ctx context.Context) (repository.SettingsStore, error) {
	switch a.cfg.SettingsBackend {
	case config.BackendPostgres:
		pg, err := infrastructure.NewPostgresClient(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return repository.NewConfigRepository(pg.Pool), nil
	case config.BackendSQLite:
		db, err := repository.NewSQLiteConfigRepository(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite settings: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		return db, nil
	default:
		return repository.NewMemoryConfigRepository(), nil
	}
}

func (a *app) performance() usecases.PerformanceFigures {
	ctx, cancel := context.WithTimeout(context.Background(), settingsTimeout)
	defer cancel()
	return a.dashboard.PerformanceFigures(ctx)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildClassifier(cfg *config.Config) (*usecases.IntentClassifier, error) {
	if cfg.RulesFile == "" {
		return usecases.NewDefaultIntentClassifier(), nil
	}
	rules, err := usecases.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	classifier, err := usecases.NewIntentClassifier(rules)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", cfg.RulesFile, err)
	}
	return classifier, nil
}
