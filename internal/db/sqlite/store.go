package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
	"serotonyl.ru/devscore/internal/store"
)

// Store — хранилище на SQLite.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// ListUsers возвращает справочник по возрастанию ID.
func (s *Store) ListUsers(ctx context.Context) ([]members.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователей: %w", err)
	}
	users := make([]members.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// GetUser: если не найден — ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*members.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}

func getUser(db *gorm.DB, id int64) (*members.User, error) {
	var row userRow
	if err := db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (id=%d): %w", id, err)
	}
	u := row.toUser()
	return &u, nil
}

// UpsertUser создаёт пользователя или обновляет имя по external_id. Заполняет u.ID.
func (s *Store) UpsertUser(ctx context.Context, u *members.User) error {
	now := micros(common.NowUTC())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := userRow{ExternalID: u.ExternalID, DisplayName: u.DisplayName, CreatedUs: now, UpdatedUs: now}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("ошибка создания/обновления пользователя: %w", err)
		}

		var saved userRow
		if err := tx.Where("external_id = ?", u.ExternalID).First(&saved).Error; err != nil {
			return fmt.Errorf("ошибка чтения пользователя: %w", err)
		}
		*u = saved.toUser()
		return nil
	})
}

// SyncAchievements записывает каталог (upsert по ID).
func (s *Store) SyncAchievements(ctx context.Context, defs []achievements.Achievement) error {
	if len(defs) == 0 {
		return nil
	}
	rows := make([]achievementRow, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, achievementRow{
			ID:              d.ID,
			ActionType:      int(d.ActionType),
			NumberOfActions: d.NumberOfActions,
			Name:            d.Name,
			Description:     d.Description,
			Level:           d.Level,
		})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("ошибка записи каталога: %w", err)
	}
	return nil
}

// ListAchievements возвращает определения по возрастанию ID.
func (s *Store) ListAchievements(ctx context.Context) ([]achievements.Achievement, error) {
	var rows []achievementRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения достижений: %w", err)
	}
	defs := make([]achievements.Achievement, 0, len(rows))
	for _, r := range rows {
		defs = append(defs, r.toAchievement())
	}
	return defs, nil
}

// InCycle выполняет fn в транзакции gorm. Внутри fn обращаться к s.db нельзя:
// соединение одно и занято транзакцией.
func (s *Store) InCycle(ctx context.Context, userID int64, fn func(store.Cycle) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&cycle{tx: tx, userID: userID})
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistenceWriteFailed, err)
	}
	return nil
}

// GetStats возвращает статистику. Пользователь без циклов получает нулевую запись.
func (s *Store) GetStats(ctx context.Context, userID int64) (stats.UserStats, error) {
	db := s.db.WithContext(ctx)
	u, err := getUser(db, userID)
	if err != nil {
		return stats.UserStats{}, err
	}

	var row statsRow
	if err := db.First(&row, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			st := stats.New(userID)
			st.UpdatedAt = u.CreatedAt
			return st, nil
		}
		return stats.UserStats{}, fmt.Errorf("ошибка чтения статистики (id=%d): %w", userID, err)
	}
	return row.toStats()
}

// ListAwards возвращает награды пользователя по возрастанию ID достижения.
func (s *Store) ListAwards(ctx context.Context, userID int64) ([]achievements.Award, error) {
	var rows []awardRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("achievement_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	awards := make([]achievements.Award, 0, len(rows))
	for _, r := range rows {
		awards = append(awards, r.toAward())
	}
	return awards, nil
}

type standingRow struct {
	UserID      int64
	ExternalID  string
	DisplayName string
	Points      string
	Actions     int64
	Awards      int
}

// Leaderboard: по убыванию очков, при равенстве — по ID.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]store.Standing, error) {
	var rows []standingRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id, u.external_id, u.display_name,
		       COALESCE(s.total_points, '0') AS points,
		       COALESCE(s.total_commits + s.total_issues_created + s.total_issues_solved
		                + s.total_merge_requests + s.total_comments, 0) AS actions,
		       (SELECT COUNT(*) FROM user_achievements a WHERE a.user_id = u.id) AS awards
		FROM users u
		LEFT JOIN user_stats s ON s.user_id = u.id
		ORDER BY CAST(COALESCE(s.total_points, '0') AS REAL) DESC, u.id
		LIMIT ?
	`, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы лидеров: %w", err)
	}

	board := make([]store.Standing, 0, len(rows))
	for i, r := range rows {
		points, err := decimal.NewFromString(r.Points)
		if err != nil {
			return nil, fmt.Errorf("некорректные очки пользователя %d: %w", r.UserID, err)
		}
		board = append(board, store.Standing{
			Rank:        i + 1,
			UserID:      r.UserID,
			ExternalID:  r.ExternalID,
			DisplayName: r.DisplayName,
			Points:      points,
			Actions:     r.Actions,
			Awards:      r.Awards,
		})
	}
	return board, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r statsRow) toStats() (stats.UserStats, error) {
	points, err := decimal.NewFromString(r.TotalPoints)
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("некорректные очки пользователя %d: %w", r.UserID, err)
	}
	return stats.UserStats{
		UserID:             r.UserID,
		TotalCommits:       r.TotalCommits,
		TotalIssuesCreated: r.TotalIssuesCreated,
		TotalIssuesSolved:  r.TotalIssuesSolved,
		TotalMergeRequests: r.TotalMergeRequests,
		TotalComments:      r.TotalComments,
		TotalPoints:        points,
		LastFoldedAt:       fromMicros(r.LastFoldedAt),
		UpdatedAt:          fromMicros(r.UpdatedUs),
	}, nil
}

var zeroMicros = micros(time.Time{})
