// Package stats накапливает пожизненные счётчики пользователя из журнала транзакций.
// models.go описывает запись накопленной статистики.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/devscore/internal/features/ledger"
)

// UserStats — накопленные счётчики пользователя. Одна запись на пользователя.
// Счётчики только растут: к ним прибавляются значения строк журнала.
type UserStats struct {
	UserID             int64           `db:"user_id"`
	TotalCommits       int64           `db:"total_commits"`
	TotalIssuesCreated int64           `db:"total_issues_created"`
	TotalIssuesSolved  int64           `db:"total_issues_solved"`
	TotalMergeRequests int64           `db:"total_merge_requests"`
	TotalComments      int64           `db:"total_comments"`
	TotalPoints        decimal.Decimal `db:"total_points"`   // сумма очков по таблице наград
	LastFoldedAt       time.Time       `db:"last_folded_at"` // водяной знак: дата последнего учтённого цикла
	UpdatedAt          time.Time       `db:"updated_at"`
}

// New создаёт пустую статистику пользователя.
func New(userID int64) UserStats {
	return UserStats{UserID: userID, TotalPoints: decimal.Zero}
}

// Get возвращает счётчик по типу действия.
func (s UserStats) Get(a ledger.ActionType) int64 {
	switch a {
	case ledger.Commit:
		return s.TotalCommits
	case ledger.IssueOpened:
		return s.TotalIssuesCreated
	case ledger.IssueSolved:
		return s.TotalIssuesSolved
	case ledger.MergeRequest:
		return s.TotalMergeRequests
	case ledger.Comment:
		return s.TotalComments
	}
	return 0
}

// add прибавляет значение к счётчику нужного типа.
func (s *UserStats) add(a ledger.ActionType, v int64) {
	switch a {
	case ledger.Commit:
		s.TotalCommits += v
	case ledger.IssueOpened:
		s.TotalIssuesCreated += v
	case ledger.IssueSolved:
		s.TotalIssuesSolved += v
	case ledger.MergeRequest:
		s.TotalMergeRequests += v
	case ledger.Comment:
		s.TotalComments += v
	}
}

// Total возвращает сумму всех счётчиков.
func (s UserStats) Total() int64 {
	return s.TotalCommits + s.TotalIssuesCreated + s.TotalIssuesSolved + s.TotalMergeRequests + s.TotalComments
}
