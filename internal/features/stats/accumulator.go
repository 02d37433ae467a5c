// Package stats — accumulator.go сворачивает новые строки журнала в счётчики.
package stats

import (
	"github.com/shopspring/decimal"

	"serotonyl.ru/devscore/internal/features/ledger"
)

// Fold прибавляет к статистике строки журнала, которые ещё не учтены.
//
// Строка считается новой, только если её FetchDate строго больше водяного знака
// LastFoldedAt. После свёртки водяной знак сдвигается на максимальную учтённую дату.
// Поэтому повторный вызов с теми же строками ничего не меняет.
//
// Строки чужого пользователя и строки с отрицательным значением пропускаются.
// Возвращает новую статистику и число учтённых строк.
func Fold(s UserStats, rows []ledger.Transaction) (UserStats, int) {
	if s.TotalPoints.IsZero() {
		s.TotalPoints = decimal.Zero
	}

	watermark := s.LastFoldedAt
	folded := 0
	for _, r := range rows {
		if r.UserID != s.UserID || r.Value < 0 || !r.ActionType.Valid() {
			continue
		}
		if !r.FetchDate.After(s.LastFoldedAt) {
			continue
		}
		s.add(r.ActionType, r.Value)
		s.TotalPoints = s.TotalPoints.Add(r.Points())
		if r.FetchDate.After(watermark) {
			watermark = r.FetchDate
		}
		folded++
	}
	s.LastFoldedAt = watermark
	return s, folded
}
