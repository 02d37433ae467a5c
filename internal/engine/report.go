// Package engine — report.go описывает итог прогона по пользователям.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/stats"
)

// Status — исход цикла пользователя.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // прогон отменён до старта цикла или цикл уступил параллельному
)

// UserResult — итог цикла одного пользователя.
type UserResult struct {
	UserID     int64
	ExternalID string
	Status     Status
	Err        error

	Counts    ledger.Counts        // подсчёт событий за цикл
	Seen      int                  // событий получено
	Folded    int                  // строк журнала учтено
	Stats     stats.UserStats      // статистика после цикла
	NewAwards []achievements.Award // выданные в этом цикле
	Duration  time.Duration
}

// Report — итог прогона. Results идут в порядке справочника.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []UserResult
}

func (r *Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Succeeded возвращает число успешных циклов.
func (r *Report) Succeeded() int { return r.count(StatusOK) }

// Failed возвращает число проваленных циклов.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Skipped возвращает число пропущенных из-за отмены пользователей.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

// Awards возвращает общее число выданных наград.
func (r *Report) Awards() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.NewAwards)
	}
	return n
}

// Failures возвращает только проваленные циклы.
func (r *Report) Failures() []UserResult {
	var out []UserResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Summary — строка для логов и CLI.
func (r *Report) Summary() string {
	return fmt.Sprintf("прогон %s: пользователей %d, успешно %d, ошибок %d, пропущено %d, наград %d за %s",
		r.RunID, len(r.Results), r.Succeeded(), r.Failed(), r.Skipped(), r.Awards(),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
