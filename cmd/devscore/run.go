package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"serotonyl.ru/devscore/internal/app"
	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/engine"
)

func runCmd() *cobra.Command {
	var externalID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Один прогон по всем пользователям (или одному, --user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// первый сигнал перестаёт запускать новые циклы, начатые доводятся до конца
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			if externalID != "" {
				return runOne(ctx, cmd, application, externalID)
			}

			report, err := application.Engine.RunBatch(ctx)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if report.Failed() > 0 {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&externalID, "user", "", "внешний ID пользователя")
	return cmd
}

func runOne(ctx context.Context, cmd *cobra.Command, application *app.App, externalID string) error {
	users, err := application.Members.List(ctx)
	if err != nil {
		return err
	}
	defs, err := application.Store.ListAchievements(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ExternalID != externalID {
			continue
		}
		res := application.Engine.RunUser(ctx, u, defs)
		printResult(cmd, res)
		if res.Status != engine.StatusOK {
			return errRunFailed
		}
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrUserNotFound, externalID)
}

func printReport(cmd *cobra.Command, report *engine.Report) {
	printf(cmd, "%s\n", report.Summary())
	for _, res := range report.Results {
		printResult(cmd, res)
	}
}

func printResult(cmd *cobra.Command, res engine.UserResult) {
	switch res.Status {
	case engine.StatusOK:
		printf(cmd, "  ✅ %s: %s, очков %s, новых наград %d\n",
			res.ExternalID,
			common.FormatCount(res.Counts.Total(), common.PluralizeActions),
			common.FormatPoints(res.Stats.TotalPoints),
			len(res.NewAwards))
	case engine.StatusFailed:
		printf(cmd, "  ❌ %s: %v\n", res.ExternalID, res.Err)
	default:
		printf(cmd, "  ⏭ %s: пропущен\n", res.ExternalID)
	}
}
