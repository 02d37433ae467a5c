package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"serotonyl.ru/devscore/internal/app"
	"serotonyl.ru/devscore/internal/common"
)

func topCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Таблица лидеров",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit должен быть > 0")
			}
			ctx := context.Background()
			st, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			board, err := st.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tПОЛЬЗОВАТЕЛЬ\tОЧКИ\tДЕЙСТВИЯ\tНАГРАДЫ")
			for _, r := range board {
				name := r.DisplayName
				if name == "" {
					name = "@" + r.ExternalID
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					r.Rank, name, common.FormatPoints(r.Points),
					common.FormatNumber(r.Actions),
					common.FormatCount(int64(r.Awards), common.PluralizeAchievements))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "сколько строк показать")
	return cmd
}
