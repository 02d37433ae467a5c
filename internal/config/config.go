// Package config загружает конфигурацию движка из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Драйверы хранилища
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Хранилище ---
	// postgres — боевой режим, sqlite — локальный запуск без внешней БД.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/devscore.db"`

	// --- Database ---
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"devscore"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"devscore"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	AppTimezone  string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Источник событий (GitLab API) ---
	GitLabBaseURL  string        `envconfig:"GITLAB_BASE_URL" default:"https://gitlab.com/api/v4"`
	GitLabToken    string        `envconfig:"GITLAB_TOKEN"`
	GitLabPerPage  int           `envconfig:"GITLAB_PER_PAGE" default:"100"`
	GitLabMaxPages int           `envconfig:"GITLAB_MAX_PAGES" default:"10"`
	GitLabTimeout  time.Duration `envconfig:"GITLAB_TIMEOUT" default:"15s"`

	// --- Движок ---
	// Сколько пользователей обрабатываем параллельно.
	EngineWorkers  int    `envconfig:"ENGINE_WORKERS" default:"4"`
	EngineSchedule string `envconfig:"ENGINE_SCHEDULE" default:"0 * * * *"`

	// --- Каталог достижений ---
	// Пусто — используется встроенный каталог.
	AchievementsFile string `envconfig:"ACHIEVEMENTS_FILE"`

	// --- Уведомления ---
	// Если токен пустой — уведомления о наградах не отправляются.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`

	// --- HTTP API ---
	HTTPAddr       string `envconfig:"HTTP_ADDR" default:":8080"`
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`

	// --- Rate Limiting ручного запуска ---
	RunRateLimitRequests int           `envconfig:"RUN_RATE_LIMIT_REQUESTS" default:"3"`
	RunRateLimitWindow   time.Duration `envconfig:"RUN_RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword), c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// NotificationsEnabled сообщает, настроена ли отправка уведомлений в Telegram.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("неизвестный STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := url.ParseRequestURI(c.GitLabBaseURL); err != nil {
		return fmt.Errorf("GITLAB_BASE_URL некорректен: %w", err)
	}
	if c.GitLabPerPage <= 0 || c.GitLabPerPage > 100 {
		return fmt.Errorf("GITLAB_PER_PAGE должен быть в диапазоне 1..100")
	}
	if c.GitLabMaxPages <= 0 {
		return fmt.Errorf("GITLAB_MAX_PAGES должен быть > 0")
	}
	if c.GitLabTimeout <= 0 {
		return fmt.Errorf("GITLAB_TIMEOUT должен быть > 0")
	}
	if c.EngineWorkers <= 0 {
		return fmt.Errorf("ENGINE_WORKERS должен быть > 0")
	}
	if _, err := cron.ParseStandard(c.EngineSchedule); err != nil {
		return fmt.Errorf("ENGINE_SCHEDULE некорректен: %w", err)
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID обязателен вместе с TELEGRAM_BOT_TOKEN")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
