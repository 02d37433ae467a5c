// Package server — HTTP API движка: таблица лидеров, статистика и награды
// пользователей, ручной запуск прогона.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Options — настройки маршрутизатора.
type Options struct {
	AdminTokenHash string
	RunLimiter     *RateLimiter // nil — без ограничения
}

// NewRouter собирает маршруты API.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), RequestLogger())

	r.GET("/health", h.Health)
	r.GET("/leaderboard", h.Leaderboard)

	users := r.Group("/users/:id")
	users.GET("/stats", h.UserStats)
	users.GET("/achievements", h.UserAchievements)

	run := []gin.HandlerFunc{}
	if opts.RunLimiter != nil {
		run = append(run, RateLimit(opts.RunLimiter))
	}
	run = append(run, RequireAdmin(opts.AdminTokenHash), h.Run)
	r.POST("/runs", run...)

	return r
}

// Server — HTTP-сервер API.
type Server struct {
	http    *http.Server
	limiter *RateLimiter
}

// New создаёт сервер на addr.
func New(addr string, h *Handler, opts Options) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		limiter: opts.RunLimiter,
	}
}

// Start слушает addr до отмены ctx, затем корректно останавливается.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.http.Addr).Info("HTTP API запущен")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.limiter != nil {
		s.limiter.Close()
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
	}
	log.Info("HTTP API остановлен")
	return nil
}
