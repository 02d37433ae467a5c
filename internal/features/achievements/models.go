// Package achievements проверяет пороги достижений и выдаёт награды.
// models.go описывает определения достижений и выданные награды.
package achievements

import (
	"time"

	"serotonyl.ru/devscore/internal/features/ledger"
)

// Achievement — статическое определение: тип действия и порог.
type Achievement struct {
	ID              int64             `db:"id"`
	ActionType      ledger.ActionType `db:"action_type"`
	NumberOfActions int64             `db:"number_of_actions"` // порог, >= 1
	Name            string            `db:"name"`
	Description     string            `db:"description"`
	Level           int               `db:"level"` // ступень внутри одного типа действия
}

// Award — выданная награда. Не отзывается.
// На пару (UserID, AchievementID) существует не больше одной записи.
type Award struct {
	UserID        int64     `db:"user_id"`
	AchievementID int64     `db:"achievement_id"`
	IsUnlocked    bool      `db:"is_unlocked"`
	UnlockedAt    time.Time `db:"unlocked_at"`
}

// AwardKey — ключ награды в индексе.
type AwardKey struct {
	UserID        int64
	AchievementID int64
}

// Key возвращает ключ награды.
func (a Award) Key() AwardKey {
	return AwardKey{UserID: a.UserID, AchievementID: a.AchievementID}
}

// AwardIndex — множество уже выданных наград.
type AwardIndex map[AwardKey]struct{}

// NewAwardIndex строит индекс по списку наград.
func NewAwardIndex(awards []Award) AwardIndex {
	idx := make(AwardIndex, len(awards))
	for _, a := range awards {
		idx.Add(a.Key())
	}
	return idx
}

// Has проверяет, выдана ли награда.
func (idx AwardIndex) Has(k AwardKey) bool {
	_, ok := idx[k]
	return ok
}

// Add отмечает награду как выданную.
func (idx AwardIndex) Add(k AwardKey) {
	idx[k] = struct{}{}
}
