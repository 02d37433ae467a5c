// Package ledger — rewards.go содержит статическую таблицу весов.
// Таблица не хранится в БД: веса не меняются во время работы.
package ledger

import "github.com/shopspring/decimal"

// Таблица наград:
//
//	Commit:        0.15
//	Issue opened:  0.15
//	Issue solved:  0.30
//	Merge request: 0.35
//	Comment:       0.05
var rewards = map[ActionType]decimal.Decimal{
	Commit:       decimal.RequireFromString("0.15"),
	IssueOpened:  decimal.RequireFromString("0.15"),
	IssueSolved:  decimal.RequireFromString("0.30"),
	MergeRequest: decimal.RequireFromString("0.35"),
	Comment:      decimal.RequireFromString("0.05"),
}

// Reward возвращает вес одного действия. Для неизвестного типа — 0.
func Reward(a ActionType) decimal.Decimal {
	if w, ok := rewards[a]; ok {
		return w
	}
	return decimal.Zero
}

// Describe возвращает человекочитаемое описание типа для уведомлений.
func Describe(a ActionType) string {
	switch a {
	case Commit:
		return "Коммиты"
	case IssueOpened:
		return "Открытые issues"
	case IssueSolved:
		return "Решённые issues"
	case MergeRequest:
		return "Merge requests"
	case Comment:
		return "Комментарии"
	}
	return a.String()
}
