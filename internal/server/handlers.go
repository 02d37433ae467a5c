package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/engine"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Runner запускает прогон движка.
type Runner interface {
	RunBatch(ctx context.Context) (*engine.Report, error)
}

// Handler обслуживает HTTP API только для чтения и ручной запуск прогона.
type Handler struct {
	store  store.Store
	runner Runner
}

func NewHandler(st store.Store, runner Runner) *Handler {
	return &Handler{store: st, runner: runner}
}

type statsResponse struct {
	UserID             int64           `json:"user_id"`
	ExternalID         string          `json:"external_id"`
	DisplayName        string          `json:"display_name"`
	TotalCommits       int64           `json:"total_commits"`
	TotalIssuesCreated int64           `json:"total_issues_created"`
	TotalIssuesSolved  int64           `json:"total_issues_solved"`
	TotalMergeRequests int64           `json:"total_merge_requests"`
	TotalComments      int64           `json:"total_comments"`
	TotalPoints        decimal.Decimal `json:"total_points"`
	LastFoldedAt       *time.Time      `json:"last_folded_at,omitempty"`
}

type awardResponse struct {
	AchievementID   int64     `json:"achievement_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ActionType      string    `json:"action_type"`
	NumberOfActions int64     `json:"number_of_actions"`
	Level           int       `json:"level"`
	UnlockedAt      time.Time `json:"unlocked_at"`
}

type standingResponse struct {
	Rank        int             `json:"rank"`
	UserID      int64           `json:"user_id"`
	ExternalID  string          `json:"external_id"`
	DisplayName string          `json:"display_name"`
	Points      decimal.Decimal `json:"points"`
	Actions     int64           `json:"actions"`
	Awards      int             `json:"awards"`
}

type failureResponse struct {
	UserID     int64  `json:"user_id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
}

type runResponse struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Users      int               `json:"users"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Awards     int               `json:"awards"`
	Failures   []failureResponse `json:"failures"`
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Leaderboard возвращает таблицу лидеров (?limit=, по умолчанию 10).
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit должен быть положительным числом"})
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	rows, err := h.store.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]standingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, standingResponse{
			Rank:        r.Rank,
			UserID:      r.UserID,
			ExternalID:  r.ExternalID,
			DisplayName: r.DisplayName,
			Points:      r.Points,
			Actions:     r.Actions,
			Awards:      r.Awards,
		})
	}
	c.JSON(http.StatusOK, out)
}

// UserStats возвращает накопленную статистику пользователя.
func (h *Handler) UserStats(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	u, err := h.store.GetUser(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.store.GetStats(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := statsResponse{
		UserID:             u.ID,
		ExternalID:         u.ExternalID,
		DisplayName:        u.Name(),
		TotalCommits:       s.TotalCommits,
		TotalIssuesCreated: s.TotalIssuesCreated,
		TotalIssuesSolved:  s.TotalIssuesSolved,
		TotalMergeRequests: s.TotalMergeRequests,
		TotalComments:      s.TotalComments,
		TotalPoints:        s.TotalPoints,
	}
	if !s.LastFoldedAt.IsZero() {
		at := s.LastFoldedAt.UTC()
		resp.LastFoldedAt = &at
	}
	c.JSON(http.StatusOK, resp)
}

// UserAchievements возвращает награды пользователя с описаниями из каталога.
func (h *Handler) UserAchievements(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.GetUser(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	awards, err := h.store.ListAwards(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defs, err := h.store.ListAchievements(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	byID := achievements.ByID(defs)

	out := make([]awardResponse, 0, len(awards))
	for _, a := range awards {
		d := byID[a.AchievementID]
		out = append(out, awardResponse{
			AchievementID:   a.AchievementID,
			Name:            d.Name,
			Description:     d.Description,
			ActionType:      d.ActionType.String(),
			NumberOfActions: d.NumberOfActions,
			Level:           d.Level,
			UnlockedAt:      a.UnlockedAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Run запускает прогон вручную и возвращает отчёт.
// Прогон доводится до конца, даже если клиент отключился.
func (h *Handler) Run(c *gin.Context) {
	report, err := h.runner.RunBatch(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := runResponse{
		RunID:      report.RunID.String(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Users:      len(report.Results),
		Succeeded:  report.Succeeded(),
		Failed:     report.Failed(),
		Skipped:    report.Skipped(),
		Awards:     report.Awards(),
		Failures:   []failureResponse{},
	}
	for _, f := range report.Failures() {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, failureResponse{UserID: f.UserID, ExternalID: f.ExternalID, Error: msg})
	}
	c.JSON(http.StatusOK, resp)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id пользователя"})
		return 0, false
	}
	return id, true
}

// fail переводит ошибку в HTTP-ответ.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Ошибка обработки запроса")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
