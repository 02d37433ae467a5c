// Package postgres — store.go реализует хранилище движка на PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
	"serotonyl.ru/devscore/internal/store"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

// ListUsers возвращает справочник по возрастанию ID.
func (s *Store) ListUsers(ctx context.Context) ([]members.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, external_id, display_name, created_at, updated_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователей: %w", err)
	}
	defer rows.Close()

	var users []members.User
	for rows.Next() {
		var u members.User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser: если не найден — ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*members.User, error) {
	var u members.User
	err := s.db.QueryRow(ctx, `
		SELECT id, external_id, display_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.ExternalID, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w (id=%d)", common.ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("ошибка чтения пользователя (id=%d): %w", id, err)
	}
	return &u, nil
}

// UpsertUser создаёт пользователя или обновляет имя по external_id.
// Заполняет u.ID.
func (s *Store) UpsertUser(ctx context.Context, u *members.User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (external_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, u.ExternalID, u.DisplayName).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания/обновления пользователя: %w", err)
	}
	return nil
}

// SyncAchievements записывает каталог одной транзакцией.
func (s *Store) SyncAchievements(ctx context.Context, defs []achievements.Achievement) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(`
			INSERT INTO achievements (id, action_type, number_of_actions, name, description, level)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET action_type = EXCLUDED.action_type,
			    number_of_actions = EXCLUDED.number_of_actions,
			    name = EXCLUDED.name,
			    description = EXCLUDED.description,
			    level = EXCLUDED.level,
			    updated_at = NOW()
		`, d.ID, int16(d.ActionType), d.NumberOfActions, d.Name, d.Description, d.Level)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ошибка записи каталога: %w", err)
	}
	return tx.Commit(ctx)
}

// ListAchievements возвращает определения по возрастанию ID.
func (s *Store) ListAchievements(ctx context.Context) ([]achievements.Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, action_type, number_of_actions, name, description, level
		FROM achievements
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения достижений: %w", err)
	}
	defer rows.Close()

	var defs []achievements.Achievement
	for rows.Next() {
		var (
			d      achievements.Achievement
			action int16
		)
		if err := rows.Scan(&d.ID, &action, &d.NumberOfActions, &d.Name, &d.Description, &d.Level); err != nil {
			return nil, fmt.Errorf("ошибка чтения достижения: %w", err)
		}
		d.ActionType = ledger.ActionType(action)
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// InCycle открывает транзакцию цикла пользователя.
func (s *Store) InCycle(ctx context.Context, userID int64, fn func(store.Cycle) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistenceWriteFailed, err)
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	if err := fn(&cycle{tx: tx, userID: userID}); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistenceWriteFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: фиксация: %w", common.ErrPersistenceWriteFailed, err)
	}
	return nil
}

// GetStats возвращает статистику. Пользователь без циклов получает нулевую запись.
func (s *Store) GetStats(ctx context.Context, userID int64) (stats.UserStats, error) {
	var (
		st     stats.UserStats
		points string
	)
	err := s.db.QueryRow(ctx, `
		SELECT u.id,
		       COALESCE(s.total_commits, 0), COALESCE(s.total_issues_created, 0),
		       COALESCE(s.total_issues_solved, 0), COALESCE(s.total_merge_requests, 0),
		       COALESCE(s.total_comments, 0), COALESCE(s.total_points, 0)::text,
		       COALESCE(s.last_folded_at, '0001-01-01 00:00:00+00'), COALESCE(s.updated_at, u.created_at)
		FROM users u
		LEFT JOIN user_stats s ON s.user_id = u.id
		WHERE u.id = $1
	`, userID).Scan(
		&st.UserID,
		&st.TotalCommits, &st.TotalIssuesCreated, &st.TotalIssuesSolved,
		&st.TotalMergeRequests, &st.TotalComments, &points,
		&st.LastFoldedAt, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats.UserStats{}, fmt.Errorf("%w (id=%d)", common.ErrUserNotFound, userID)
		}
		return stats.UserStats{}, fmt.Errorf("ошибка чтения статистики (id=%d): %w", userID, err)
	}
	if st.TotalPoints, err = parseNumeric(points); err != nil {
		return stats.UserStats{}, err
	}
	st.LastFoldedAt = st.LastFoldedAt.UTC()
	return st, nil
}

// ListAwards возвращает награды пользователя по возрастанию ID достижения.
func (s *Store) ListAwards(ctx context.Context, userID int64) ([]achievements.Award, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, achievement_id, is_unlocked, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY achievement_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	defer rows.Close()

	var awards []achievements.Award
	for rows.Next() {
		var a achievements.Award
		if err := rows.Scan(&a.UserID, &a.AchievementID, &a.IsUnlocked, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения награды: %w", err)
		}
		a.UnlockedAt = a.UnlockedAt.UTC()
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// Leaderboard: по убыванию очков, при равенстве — по ID.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]store.Standing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.external_id, u.display_name,
		       COALESCE(s.total_points, 0)::text,
		       COALESCE(s.total_commits + s.total_issues_created + s.total_issues_solved
		                + s.total_merge_requests + s.total_comments, 0),
		       (SELECT COUNT(*) FROM user_achievements a WHERE a.user_id = u.id)
		FROM users u
		LEFT JOIN user_stats s ON s.user_id = u.id
		ORDER BY COALESCE(s.total_points, 0) DESC, u.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы лидеров: %w", err)
	}
	defer rows.Close()

	var board []store.Standing
	for rows.Next() {
		var (
			st     store.Standing
			points string
		)
		if err := rows.Scan(&st.UserID, &st.ExternalID, &st.DisplayName, &points, &st.Actions, &st.Awards); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки лидеров: %w", err)
		}
		if st.Points, err = parseNumeric(points); err != nil {
			return nil, err
		}
		st.Rank = len(board) + 1
		board = append(board, st)
	}
	return board, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
