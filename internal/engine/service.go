// Package engine прогоняет конвейер начисления по всем пользователям:
// выборка событий → классификация → журнал → свёртка статистики → награды.
//
// Пользователи обрабатываются независимо на ограниченном пуле воркеров.
// Ошибка одного пользователя не останавливает прогон и попадает в отчёт.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/activity"
	"serotonyl.ru/devscore/internal/features/ledger"
	"serotonyl.ru/devscore/internal/features/members"
	"serotonyl.ru/devscore/internal/features/stats"
	"serotonyl.ru/devscore/internal/notify"
	"serotonyl.ru/devscore/internal/store"
)

// Fetcher получает и классифицирует события пользователя за окно цикла.
type Fetcher interface {
	FetchTally(ctx context.Context, externalID string, w activity.Window) (*activity.Tally, error)
}

// Service — движок начисления.
type Service struct {
	store    store.Store
	fetcher  Fetcher
	notifier notify.Notifier
	workers  int
	now      func() time.Time

	// одновременно выполняется только один прогон
	running sync.Mutex
}

// NewService создаёт движок. workers <= 0 означает один воркер.
func NewService(st store.Store, fetcher Fetcher, notifier notify.Notifier, workers int) *Service {
	if workers <= 0 {
		workers = 1
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    st,
		fetcher:  fetcher,
		notifier: notifier,
		workers:  workers,
		now:      common.NowUTC,
	}
}

// RunBatch обрабатывает всех пользователей справочника.
//
// Если прогон уже идёт — ErrRunInProgress. Отмена ctx прекращает запуск новых
// циклов (оставшиеся пользователи получают StatusSkipped), а начатые циклы
// доводятся до конца без отмены. Ошибка возвращается, только если не удалось
// загрузить справочник или каталог.
func (s *Service) RunBatch(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, common.ErrRunInProgress
	}
	defer s.running.Unlock()

	report := &Report{RunID: uuid.New(), StartedAt: s.now()}
	logger := log.WithField("run_id", report.RunID)

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки пользователей: %w", err)
	}
	defs, err := s.store.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки достижений: %w", err)
	}

	logger.WithFields(log.Fields{
		"users":        len(users),
		"achievements": len(defs),
		"workers":      s.workers,
	}).Info("Прогон начат")

	results := make([]UserResult, len(users))
	inflight := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, u := range users {
		if ctx.Err() != nil {
			results[i] = skipped(u, ctx.Err())
			continue
		}
		g.Go(func() error {
			// пока ждали свободный воркер, прогон могли отменить
			if ctx.Err() != nil {
				results[i] = skipped(u, ctx.Err())
				return nil
			}
			results[i] = s.runUser(inflight, u, defs, logger)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.FinishedAt = s.now()

	entry := logger.WithFields(log.Fields{
		"ok":      report.Succeeded(),
		"failed":  report.Failed(),
		"skipped": report.Skipped(),
		"awards":  report.Awards(),
	})
	if report.Failed() > 0 || report.Skipped() > 0 {
		entry.Warn("Прогон завершён с ошибками")
	} else {
		entry.Info("Прогон завершён")
	}
	return report, nil
}

// RunUser выполняет один цикл пользователя. Как и в RunBatch, начатый цикл
// доводится до конца: отмена ctx на него не действует.
func (s *Service) RunUser(ctx context.Context, u members.User, defs []achievements.Achievement) UserResult {
	return s.runUser(context.WithoutCancel(ctx), u, defs, log.NewEntry(log.StandardLogger()))
}

func skipped(u members.User, err error) UserResult {
	return UserResult{UserID: u.ID, ExternalID: u.ExternalID, Status: StatusSkipped, Err: err}
}

// runUser: выборка вне транзакции, запись цикла одной транзакцией,
// уведомление после фиксации.
func (s *Service) runUser(ctx context.Context, u members.User, defs []achievements.Achievement, logger *log.Entry) UserResult {
	started := s.now()
	res := UserResult{UserID: u.ID, ExternalID: u.ExternalID}
	logger = logger.WithFields(log.Fields{"user_id": u.ID, "external_id": u.ExternalID})

	fail := func(err error) UserResult {
		res.Status = StatusFailed
		res.Err = err
		res.Duration = s.now().Sub(started)
		logger.WithError(err).Error("Цикл пользователя не выполнен")
		return res
	}

	current, err := s.store.GetStats(ctx, u.ID)
	if err != nil {
		return fail(err)
	}

	window := activity.Window{After: current.LastFoldedAt, Until: started}
	tally, err := s.fetcher.FetchTally(ctx, u.ExternalID, window)
	if err != nil {
		return fail(err)
	}
	res.Counts = tally.Counts
	res.Seen = tally.Seen
	logger.WithFields(log.Fields{
		"seen":    tally.Seen,
		"skipped": tally.Skipped,
		"outside": tally.Outside,
	}).Debug("События классифицированы")

	var awards []achievements.Award
	err = s.store.InCycle(ctx, u.ID, func(c store.Cycle) error {
		locked, err := c.LockStats(ctx)
		if err != nil {
			return err
		}
		// окно выборки строилось от прочитанного без блокировки водяного знака
		if !locked.LastFoldedAt.Equal(window.After) {
			return fmt.Errorf("%w: водяной знак %s, ожидался %s", common.ErrCycleConflict,
				locked.LastFoldedAt.Format(time.RFC3339Nano), window.After.Format(time.RFC3339Nano))
		}

		fetchDate := ledger.NextFetchDate(started, locked.LastFoldedAt)
		if _, err := c.AppendTransactions(ctx, ledger.Record(u.ID, tally.Counts, fetchDate)); err != nil {
			return err
		}

		pending, err := c.UnfoldedTransactions(ctx, locked.LastFoldedAt)
		if err != nil {
			return err
		}
		next, folded := stats.Fold(locked, pending)
		if err := c.SaveStats(ctx, next); err != nil {
			return err
		}

		index, err := c.AwardIndex(ctx)
		if err != nil {
			return err
		}
		awards = achievements.Evaluate(next, defs, index, s.now())
		if _, err := c.AppendAwards(ctx, awards); err != nil {
			return err
		}

		res.Stats = next
		res.Folded = folded
		return nil
	})
	if errors.Is(err, common.ErrCycleConflict) {
		res.Status = StatusSkipped
		res.Err = err
		res.Duration = s.now().Sub(started)
		logger.WithError(err).Warn("Цикл пользователя пропущен: статистику обновил другой цикл")
		return res
	}
	if err != nil {
		return fail(err)
	}

	res.Status = StatusOK
	res.NewAwards = awards
	res.Duration = s.now().Sub(started)

	logger.WithFields(log.Fields{
		"folded": res.Folded,
		"awards": len(awards),
		"points": common.FormatPoints(res.Stats.TotalPoints),
	}).Info("Цикл пользователя завершён")

	if len(awards) > 0 {
		s.notify(ctx, u, defs, awards, logger)
	}
	return res
}

func (s *Service) notify(ctx context.Context, u members.User, defs []achievements.Achievement, awards []achievements.Award, logger *log.Entry) {
	byID := achievements.ByID(defs)
	unlocked := make([]achievements.Achievement, 0, len(awards))
	for _, a := range awards {
		if d, ok := byID[a.AchievementID]; ok {
			unlocked = append(unlocked, d)
		}
	}
	if err := s.notifier.NotifyAwards(ctx, u, unlocked); err != nil {
		logger.WithError(err).Warn("Не удалось отправить уведомление о наградах")
	}
}
