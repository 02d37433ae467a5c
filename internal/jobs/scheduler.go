// Package jobs управляет фоновыми задачами (cron).
// scheduler.go запускает прогон движка по расписанию ENGINE_SCHEDULE.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/engine"
)

// Runner — то, что запускает планировщик.
type Runner interface {
	RunBatch(ctx context.Context) (*engine.Report, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	schedule string
	loc      *time.Location
}

// NewScheduler создаёт планировщик в часовом поясе loc.
func NewScheduler(runner Runner, schedule string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		runner:   runner,
		schedule: schedule,
		loc:      loc,
	}
}

// Start регистрирует задачу и запускает cron. ctx отменяет идущий прогон при остановке.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Info("[CRON] Плановый прогон")
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"schedule": s.schedule,
		"timezone": s.loc.String(),
	}).Info("Планировщик задач запущен")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.runner.RunBatch(ctx)
	switch {
	case errors.Is(err, common.ErrRunInProgress):
		log.Warn("[CRON] Предыдущий прогон ещё идёт, пропускаем")
		return
	case err != nil:
		log.WithError(err).Error("[CRON] Ошибка прогона")
		return
	}
	log.Info("[CRON] " + report.Summary())
}

// Next возвращает время следующего запуска (нулевое, если cron не запущен).
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop останавливает планировщик и ждёт завершения текущей задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
