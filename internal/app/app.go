// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: открывает хранилище, синхронизирует каталог,
// создаёт клиента событий, уведомления, движок, планировщик и HTTP API.
package app

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/config"
	"serotonyl.ru/devscore/internal/db/postgres"
	"serotonyl.ru/devscore/internal/db/sqlite"
	"serotonyl.ru/devscore/internal/engine"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/activity"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/jobs"
	"serotonyl.ru/devscore/internal/notify"
	"serotonyl.ru/devscore/internal/server"
	"serotonyl.ru/devscore/internal/store"
)

// App содержит все компоненты приложения.
type App struct {
	Store     store.Store
	Members   *members.Service
	Engine    *engine.Service
	Scheduler *jobs.Scheduler
	Server    *server.Server
}

// OpenStore открывает хранилище по STORE_DRIVER и применяет миграции.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
		}
		log.WithField("path", cfg.SQLitePath).Info("Хранилище SQLite открыто")
		return s, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return postgres.NewStore(pool), nil
	}
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Каталог достижений ===
	defs, err := achievements.LoadCatalogFile(cfg.AchievementsFile)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := st.SyncAchievements(ctx, defs); err != nil {
		st.Close()
		return nil, fmt.Errorf("ошибка синхронизации каталога: %w", err)
	}
	log.WithField("achievements", len(defs)).Info("Каталог достижений синхронизирован")

	// === 3. Уведомления ===
	notifier, err := newNotifier(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	// === 4. Источник событий и движок ===
	client := activity.NewClient(activity.ClientConfig{
		BaseURL:  cfg.GitLabBaseURL,
		Token:    cfg.GitLabToken,
		PerPage:  cfg.GitLabPerPage,
		MaxPages: cfg.GitLabMaxPages,
		Timeout:  cfg.GitLabTimeout,
	}, nil)
	eng := engine.NewService(st, client, notifier, cfg.EngineWorkers)

	// === 5. Планировщик задач ===
	scheduler := jobs.NewScheduler(eng, cfg.EngineSchedule, common.LoadLocation(cfg.AppTimezone))

	// === 6. HTTP API ===
	srv := server.New(cfg.HTTPAddr, server.NewHandler(st, eng), server.Options{
		AdminTokenHash: cfg.AdminTokenHash,
		RunLimiter:     server.NewRateLimiter(cfg.RunRateLimitRequests, cfg.RunRateLimitWindow),
	})

	return &App{
		Store:     st,
		Members:   members.NewService(st),
		Engine:    eng,
		Scheduler: scheduler,
		Server:    srv,
	}, nil
}

// Close освобождает хранилище.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия хранилища")
	}
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if !cfg.NotificationsEnabled() {
		log.Info("Уведомления в Telegram отключены")
		return notify.Nop{}, nil
	}

	var opts []telego.BotOption
	if cfg.AppEnv == "development" {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	log.WithField("chat_id", cfg.TelegramChatID).Info("Уведомления в Telegram включены")
	return tg, nil
}
