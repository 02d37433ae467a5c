package sqlite

import (
	"time"

	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
)

// Строки таблиц. Поля времени — unix-микросекунды в UTC.

type userRow struct {
	ID          int64  `gorm:"primaryKey"`
	ExternalID  string `gorm:"uniqueIndex;size:255;not null"`
	DisplayName string `gorm:"size:255;not null;default:''"`
	CreatedUs   int64  `gorm:"column:created_at;not null"`
	UpdatedUs   int64  `gorm:"column:updated_at;not null"`
}

func (userRow) TableName() string { return "users" }

type achievementRow struct {
	ID              int64  `gorm:"primaryKey;autoIncrement:false"`
	ActionType      int    `gorm:"not null"`
	NumberOfActions int64  `gorm:"not null"`
	Name            string `gorm:"size:255;not null"`
	Description     string `gorm:"not null;default:''"`
	Level           int    `gorm:"not null;default:0"`
}

func (achievementRow) TableName() string { return "achievements" }

type transactionRow struct {
	UserID     int64 `gorm:"primaryKey;autoIncrement:false"`
	ActionType int   `gorm:"primaryKey;autoIncrement:false"`
	FetchDate  int64 `gorm:"primaryKey;autoIncrement:false;index:idx_user_transactions_fetch"`
	Value      int64 `gorm:"not null"`
}

func (transactionRow) TableName() string { return "user_transactions" }

type statsRow struct {
	UserID             int64  `gorm:"primaryKey;autoIncrement:false"`
	TotalCommits       int64  `gorm:"not null;default:0"`
	TotalIssuesCreated int64  `gorm:"not null;default:0"`
	TotalIssuesSolved  int64  `gorm:"not null;default:0"`
	TotalMergeRequests int64  `gorm:"not null;default:0"`
	TotalComments      int64  `gorm:"not null;default:0"`
	TotalPoints        string `gorm:"type:text;not null;default:'0'"` // десятичная строка
	LastFoldedAt       int64  `gorm:"not null"`
	UpdatedUs          int64  `gorm:"column:updated_at;not null"`
}

func (statsRow) TableName() string { return "user_stats" }

type awardRow struct {
	UserID        int64 `gorm:"primaryKey;autoIncrement:false"`
	AchievementID int64 `gorm:"primaryKey;autoIncrement:false"`
	IsUnlocked    bool  `gorm:"not null;default:true"`
	UnlockedAt    int64 `gorm:"not null"`
}

func (awardRow) TableName() string { return "user_achievements" }

func micros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func (r userRow) toUser() members.User {
	return members.User{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		DisplayName: r.DisplayName,
		CreatedAt:   fromMicros(r.CreatedUs),
		UpdatedAt:   fromMicros(r.UpdatedUs),
	}
}

func (r achievementRow) toAchievement() achievements.Achievement {
	return achievements.Achievement{
		ID:              r.ID,
		ActionType:      ledger.ActionType(r.ActionType),
		NumberOfActions: r.NumberOfActions,
		Name:            r.Name,
		Description:     r.Description,
		Level:           r.Level,
	}
}

func (r transactionRow) toTransaction() ledger.Transaction {
	return ledger.Transaction{
		UserID:     r.UserID,
		ActionType: ledger.ActionType(r.ActionType),
		FetchDate:  fromMicros(r.FetchDate),
		Value:      r.Value,
	}
}

func newStatsRow(s stats.UserStats) statsRow {
	return statsRow{
		UserID:             s.UserID,
		TotalCommits:       s.TotalCommits,
		TotalIssuesCreated: s.TotalIssuesCreated,
		TotalIssuesSolved:  s.TotalIssuesSolved,
		TotalMergeRequests: s.TotalMergeRequests,
		TotalComments:      s.TotalComments,
		TotalPoints:        s.TotalPoints.String(),
		LastFoldedAt:       micros(s.LastFoldedAt),
		UpdatedUs:          micros(s.UpdatedAt),
	}
}

func (r awardRow) toAward() achievements.Award {
	return achievements.Award{
		UserID:        r.UserID,
		AchievementID: r.AchievementID,
		IsUnlocked:    r.IsUnlocked,
		UnlockedAt:    fromMicros(r.UnlockedAt),
	}
}
