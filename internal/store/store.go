// Package store описывает хранилище движка. Реализации: internal/db/postgres
// (рабочая) и internal/db/sqlite (встроенная, для локального запуска и тестов).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
)

// Store — хранилище справочника, журнала, статистики и наград.
type Store interface {
	members.Directory

	// SyncAchievements приводит таблицу определений к каталогу (upsert по ID).
	// Определения, которых нет в каталоге, не удаляются: на них могут ссылаться награды.
	SyncAchievements(ctx context.Context, defs []achievements.Achievement) error
	ListAchievements(ctx context.Context) ([]achievements.Achievement, error)

	// InCycle выполняет fn в одной транзакции БД. Ошибка fn или фиксации
	// откатывает все записи цикла и возвращается с ErrPersistenceWriteFailed.
	InCycle(ctx context.Context, userID int64, fn func(Cycle) error) error

	// GetStats возвращает статистику пользователя (нулевую, если циклов ещё не было).
	GetStats(ctx context.Context, userID int64) (stats.UserStats, error)
	ListAwards(ctx context.Context, userID int64) ([]achievements.Award, error)
	// Leaderboard возвращает пользователей по убыванию очков.
	Leaderboard(ctx context.Context, limit int) ([]Standing, error)

	Ping(ctx context.Context) error
	Close() error
}

// Cycle — операции внутри транзакции одного цикла пользователя.
type Cycle interface {
	// AppendTransactions дописывает строки журнала. Повтор строки с тем же
	// (user, type, fetch_date) игнорируется. Возвращает число вставленных строк.
	AppendTransactions(ctx context.Context, rows []ledger.Transaction) (int, error)
	// LockStats читает и блокирует статистику пользователя до конца транзакции.
	LockStats(ctx context.Context) (stats.UserStats, error)
	// UnfoldedTransactions возвращает строки пользователя с fetch_date > after.
	UnfoldedTransactions(ctx context.Context, after time.Time) ([]ledger.Transaction, error)
	SaveStats(ctx context.Context, s stats.UserStats) error
	AwardIndex(ctx context.Context) (achievements.AwardIndex, error)
	// AppendAwards дописывает награды. Повтор пары (user, achievement)
	// игнорируется. Возвращает число вставленных наград.
	AppendAwards(ctx context.Context, awards []achievements.Award) (int, error)
}

// Standing — строка таблицы лидеров.
type Standing struct {
	Rank        int
	UserID      int64
	ExternalID  string
	DisplayName string
	Points      decimal.Decimal
	Actions     int64 // сумма всех счётчиков
	Awards      int
}
