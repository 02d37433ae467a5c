package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"serotonyl.ru/devscore/internal/app"
	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/members"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Справочник пользователей",
	}
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <external_id>",
		Short: "Добавить пользователя или обновить его имя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := members.NewService(st).Register(ctx, args[0], name)
			if err != nil {
				return err
			}
			printf(cmd, "✅ %s (id=%d)\n", u.Name(), u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "отображаемое имя")
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Список пользователей",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := members.NewService(st).List(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				printf(cmd, "Справочник пуст. Добавьте пользователя: devscore users add <external_id>\n")
				return nil
			}

			loc := common.LoadLocation(cfg.AppTimezone)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tВНЕШНИЙ ID\tИМЯ\tДОБАВЛЕН")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.ExternalID, u.Name(), common.FormatDateTime(u.CreatedAt, loc))
			}
			return w.Flush()
		},
	}
}
