// Package main — точка входа devscore.
// Загружает конфигурацию из переменных окружения и запускает подкоманду:
// serve (движок по расписанию и HTTP API), run (один прогон), users, top, hash-token.
package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/devscore/internal/config"
)

// errRunFailed — прогон завершился, но часть пользователей не обработана.
var errRunFailed = errors.New("прогон завершён с ошибками")

var cfg *config.Config

func main() {
	setupLogging()

	rootCmd := &cobra.Command{
		Use:           "devscore",
		Short:         "devscore — очки и достижения за активность разработчиков в GitLab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			applyLogConfig(cfg)
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(topCmd())
	rootCmd.AddCommand(hashTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			log.WithError(err).Error("Команда завершилась с ошибкой")
		}
		os.Exit(1)
	}
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// applyLogConfig применяет APP_LOG_LEVEL и APP_LOG_FORMAT.
func applyLogConfig(cfg *config.Config) {
	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.AppLogLevel).Warn("Неизвестный уровень логирования, оставляем info")
	}
	if cfg.AppLogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
