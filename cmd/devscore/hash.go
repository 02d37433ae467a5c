package main

import (
	"github.com/spf13/cobra"

	"serotonyl.ru/devscore/internal/server"
)

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-token <token>",
		Short:       "Сгенерировать Argon2id-хеш токена для ADMIN_TOKEN_HASH",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := server.HashToken(args[0])
			if err != nil {
				return err
			}
			printf(cmd, "Хеш токена (вставьте в .env как ADMIN_TOKEN_HASH):\n%s\n", hash)
			return nil
		},
	}
}
