// Package postgres — cycle.go: запросы внутри транзакции цикла пользователя.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/stats"
)

type cycle struct {
	tx     pgx.Tx
	userID int64
}

func (c *cycle) AppendTransactions(ctx context.Context, rows []ledger.Transaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO user_transactions (user_id, action_type, fetch_date, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, c.userID, int16(r.ActionType), r.FetchDate, r.Value)
	}

	br := c.tx.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("ошибка записи журнала: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// LockStats гарантирует наличие строки статистики и блокирует её (FOR UPDATE).
func (c *cycle) LockStats(ctx context.Context) (stats.UserStats, error) {
	if _, err := c.tx.Exec(ctx,
		`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, c.userID,
	); err != nil {
		if isForeignKeyViolation(err) {
			return stats.UserStats{}, fmt.Errorf("%w (id=%d)", common.ErrUserNotFound, c.userID)
		}
		return stats.UserStats{}, fmt.Errorf("ошибка создания статистики: %w", err)
	}

	var (
		st     stats.UserStats
		points string
	)
	err := c.tx.QueryRow(ctx, `
		SELECT user_id, total_commits, total_issues_created, total_issues_solved,
		       total_merge_requests, total_comments, total_points::text, last_folded_at, updated_at
		FROM user_stats
		WHERE user_id = $1
		FOR UPDATE
	`, c.userID).Scan(
		&st.UserID, &st.TotalCommits, &st.TotalIssuesCreated, &st.TotalIssuesSolved,
		&st.TotalMergeRequests, &st.TotalComments, &points, &st.LastFoldedAt, &st.UpdatedAt,
	)
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("ошибка блокировки статистики: %w", err)
	}
	if st.TotalPoints, err = parseNumeric(points); err != nil {
		return stats.UserStats{}, err
	}
	st.LastFoldedAt = st.LastFoldedAt.UTC()
	return st, nil
}

func (c *cycle) UnfoldedTransactions(ctx context.Context, after time.Time) ([]ledger.Transaction, error) {
	rows, err := c.tx.Query(ctx, `
		SELECT user_id, action_type, fetch_date, value
		FROM user_transactions
		WHERE user_id = $1 AND fetch_date > $2
		ORDER BY fetch_date, action_type
	`, c.userID, after)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var (
			t      ledger.Transaction
			action int16
		)
		if err := rows.Scan(&t.UserID, &action, &t.FetchDate, &t.Value); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки журнала: %w", err)
		}
		t.ActionType = ledger.ActionType(action)
		t.FetchDate = t.FetchDate.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *cycle) SaveStats(ctx context.Context, st stats.UserStats) error {
	_, err := c.tx.Exec(ctx, `
		INSERT INTO user_stats (user_id, total_commits, total_issues_created, total_issues_solved,
		                        total_merge_requests, total_comments, total_points, last_folded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_commits = EXCLUDED.total_commits,
		    total_issues_created = EXCLUDED.total_issues_created,
		    total_issues_solved = EXCLUDED.total_issues_solved,
		    total_merge_requests = EXCLUDED.total_merge_requests,
		    total_comments = EXCLUDED.total_comments,
		    total_points = EXCLUDED.total_points,
		    last_folded_at = EXCLUDED.last_folded_at,
		    updated_at = NOW()
	`, c.userID, st.TotalCommits, st.TotalIssuesCreated, st.TotalIssuesSolved,
		st.TotalMergeRequests, st.TotalComments, st.TotalPoints.String(), st.LastFoldedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения статистики: %w", err)
	}
	return nil
}

func (c *cycle) AwardIndex(ctx context.Context) (achievements.AwardIndex, error) {
	rows, err := c.tx.Query(ctx,
		`SELECT achievement_id FROM user_achievements WHERE user_id = $1`, c.userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	defer rows.Close()

	idx := achievements.AwardIndex{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка чтения награды: %w", err)
		}
		idx.Add(achievements.AwardKey{UserID: c.userID, AchievementID: id})
	}
	return idx, rows.Err()
}

func (c *cycle) AppendAwards(ctx context.Context, awards []achievements.Award) (int, error) {
	if len(awards) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, a := range awards {
		batch.Queue(`
			INSERT INTO user_achievements (user_id, achievement_id, is_unlocked, unlocked_at)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, c.userID, a.AchievementID, a.UnlockedAt)
	}

	br := c.tx.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range awards {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("ошибка записи награды: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
