// Package activity получает события пользователей из GitLab и классифицирует их.
// models.go описывает сырое событие в том виде, в каком его отдаёт API.
package activity

import (
	"time"

	"serotonyl.ru/devscore/internal/features/ledger"
)

// Event — сырое событие активности. Из всех полей API движку нужны
// только action_name и target_type, остальные — для логов.
type Event struct {
	ID         int64     `json:"id"`
	ActionName string    `json:"action_name"`
	TargetType string    `json:"target_type"` // может отсутствовать (null)
	CreatedAt  time.Time `json:"created_at"`
}

// Window — интервал (After, Until] по created_at, события из которого
// относятся к текущему циклу. Нулевая граница означает «без ограничения».
// События без created_at учитываются всегда.
type Window struct {
	After time.Time // водяной знак прошлого цикла
	Until time.Time // начало текущей выборки
}

// Contains проверяет, попадает ли момент в интервал.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !w.After.IsZero() && !t.After(w.After) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}

// Tally — итог классификации одного цикла.
type Tally struct {
	Window  Window
	Counts  ledger.Counts
	Seen    int // всего событий получено
	Skipped int // событий без классификации
	Outside int // событий вне окна цикла
}

// NewTally создаёт пустой подсчёт по окну w.
func NewTally(w Window) *Tally {
	return &Tally{Window: w, Counts: make(ledger.Counts, len(ledger.ActionTypes))}
}

// Add классифицирует событие и учитывает его, если оно попадает в окно.
func (t *Tally) Add(e Event) {
	t.Seen++
	if !t.Window.Contains(e.CreatedAt) {
		t.Outside++
		return
	}
	a, ok := Classify(e)
	if !ok {
		t.Skipped++
		return
	}
	t.Counts[a]++
}
