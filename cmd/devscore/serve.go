package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/devscore/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Прогоны по расписанию и HTTP API до SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info("=== devscore запускается ===")

			// Ctrl+C, docker stop
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Scheduler.Start(ctx); err != nil {
				return err
			}
			defer application.Scheduler.Stop()
			log.WithField("next_run", application.Scheduler.Next()).Info("=== devscore готов к работе ===")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return application.Server.Start(gctx)
			})
			err = g.Wait()

			log.Info("=== devscore остановлен ===")
			return err
		},
	}
}
