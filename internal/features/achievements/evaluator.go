// Package achievements — evaluator.go сверяет статистику с порогами.
package achievements

import (
	"cmp"
	"slices"
	"time"

	"serotonyl.ru/devscore/internal/features/stats"
)

// Evaluate возвращает новые награды пользователя.
//
// Достижение выдаётся, если счётчик его типа >= порога и награды ещё нет в индексе.
// Выданные награды сразу заносятся в индекс: повторный вызов с той же
// статистикой вернёт пустой список. Определения перебираются по возрастанию ID.
func Evaluate(s stats.UserStats, defs []Achievement, index AwardIndex, now time.Time) []Award {
	ordered := slices.Clone(defs)
	slices.SortFunc(ordered, func(a, b Achievement) int { return cmp.Compare(a.ID, b.ID) })

	now = now.UTC().Truncate(time.Microsecond)

	var awards []Award
	for _, def := range ordered {
		if def.NumberOfActions <= 0 {
			continue
		}
		key := AwardKey{UserID: s.UserID, AchievementID: def.ID}
		if index.Has(key) {
			continue
		}
		if s.Get(def.ActionType) < def.NumberOfActions {
			continue
		}
		index.Add(key)
		awards = append(awards, Award{
			UserID:        s.UserID,
			AchievementID: def.ID,
			IsUnlocked:    true,
			UnlockedAt:    now,
		})
	}
	return awards
}

// ByID строит справочник определений по ID.
func ByID(defs []Achievement) map[int64]Achievement {
	m := make(map[int64]Achievement, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return m
}
