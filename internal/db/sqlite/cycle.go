package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/stats"
)

type cycle struct {
	tx     *gorm.DB
	userID int64
}

func (c *cycle) AppendTransactions(ctx context.Context, rows []ledger.Transaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := make([]transactionRow, 0, len(rows))
	for _, r := range rows {
		batch = append(batch, transactionRow{
			UserID:     c.userID,
			ActionType: int(r.ActionType),
			FetchDate:  micros(r.FetchDate),
			Value:      r.Value,
		})
	}
	res := c.tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка записи журнала: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// LockStats создаёт строку статистики, если её нет. Отдельная блокировка не нужна:
// единственное соединение уже занято транзакцией цикла.
func (c *cycle) LockStats(ctx context.Context) (stats.UserStats, error) {
	db := c.tx.WithContext(ctx)
	if _, err := getUser(db, c.userID); err != nil {
		return stats.UserStats{}, err
	}

	var row statsRow
	err := db.First(&row, c.userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = statsRow{UserID: c.userID, TotalPoints: "0", LastFoldedAt: zeroMicros, UpdatedUs: micros(common.NowUTC())}
		err = db.Create(&row).Error
	}
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("ошибка блокировки статистики: %w", err)
	}
	return row.toStats()
}

func (c *cycle) UnfoldedTransactions(ctx context.Context, after time.Time) ([]ledger.Transaction, error) {
	var rows []transactionRow
	err := c.tx.WithContext(ctx).
		Where("user_id = ? AND fetch_date > ?", c.userID, micros(after)).
		Order("fetch_date, action_type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	out := make([]ledger.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTransaction())
	}
	return out, nil
}

func (c *cycle) SaveStats(ctx context.Context, st stats.UserStats) error {
	st.UserID = c.userID
	st.UpdatedAt = common.NowUTC()
	row := newStatsRow(st)
	err := c.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка сохранения статистики: %w", err)
	}
	return nil
}

func (c *cycle) AwardIndex(ctx context.Context) (achievements.AwardIndex, error) {
	var ids []int64
	err := c.tx.WithContext(ctx).
		Model(&awardRow{}).
		Where("user_id = ?", c.userID).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения наград: %w", err)
	}
	idx := make(achievements.AwardIndex, len(ids))
	for _, id := range ids {
		idx.Add(achievements.AwardKey{UserID: c.userID, AchievementID: id})
	}
	return idx, nil
}

func (c *cycle) AppendAwards(ctx context.Context, awards []achievements.Award) (int, error) {
	if len(awards) == 0 {
		return 0, nil
	}
	batch := make([]awardRow, 0, len(awards))
	for _, a := range awards {
		batch = append(batch, awardRow{
			UserID:        c.userID,
			AchievementID: a.AchievementID,
			IsUnlocked:    true,
			UnlockedAt:    micros(a.UnlockedAt),
		})
	}
	res := c.tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка записи награды: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
