// Package ledger ведёт журнал транзакций: неизменяемые строки с количеством
// действий одного типа для одного пользователя за один цикл выборки.
// models.go описывает типы действий и строку журнала.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActionType — закрытый перечень действий, за которые начисляются очки.
// Числовые значения совпадают с ключами таблицы наград и хранятся в БД.
type ActionType int

const (
	Commit       ActionType = 1 // push в репозиторий
	IssueOpened  ActionType = 2 // открыт issue
	IssueSolved  ActionType = 3 // закрыт issue
	MergeRequest ActionType = 4 // открыт merge request
	Comment      ActionType = 5 // комментарий
)

// ActionTypes — все типы в порядке возрастания. Порядок важен:
// по нему записываются строки цикла и перебираются счётчики.
var ActionTypes = []ActionType{Commit, IssueOpened, IssueSolved, MergeRequest, Comment}

var actionNames = map[ActionType]string{
	Commit:       "commit",
	IssueOpened:  "issue_opened",
	IssueSolved:  "issue_solved",
	MergeRequest: "merge_request",
	Comment:      "comment",
}

// String возвращает машинное имя типа (используется в каталоге и API).
func (a ActionType) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid проверяет, что значение входит в перечень.
func (a ActionType) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// ParseActionType разбирает машинное имя типа действия.
func ParseActionType(s string) (ActionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("неизвестный тип действия %q", s)
}

// Transaction — строка журнала. После записи не изменяется.
// Уникальна по (UserID, ActionType, FetchDate).
type Transaction struct {
	UserID     int64      `db:"user_id"`
	ActionType ActionType `db:"action_type"`
	FetchDate  time.Time  `db:"fetch_date"` // время цикла выборки (UTC), общее для всех строк цикла
	Value      int64      `db:"value"`      // количество действий, >= 0
}

// Points возвращает очки за строку: Value × вес типа.
func (t Transaction) Points() decimal.Decimal {
	return Reward(t.ActionType).Mul(decimal.NewFromInt(t.Value))
}
