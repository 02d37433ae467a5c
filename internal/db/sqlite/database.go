// Package sqlite реализует хранилище движка на встроенной SQLite (gorm + чистый Go драйвер).
// Используется для локального запуска без PostgreSQL и в тестах.
//
// Время хранится как unix-микросекунды (INTEGER): так сравнение водяного знака
// в SQL идёт по числам, а не по строковому представлению дат.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает (или создаёт) файл БД и применяет схему.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога данных: %w", err)
		}
	}
	s, err := open(path, []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	})
	if err != nil {
		return nil, err
	}
	log.WithField("path", path).Info("SQLite открыта")
	return s, nil
}

// OpenInMemory открывает пустую БД в памяти.
func OpenInMemory() (*Store, error) {
	return open(":memory:", []string{"PRAGMA foreign_keys=ON"})
}

func open(dsn string, pragmas []string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения соединения: %w", err)
	}
	// Одно соединение: SQLite всё равно сериализует запись,
	// а БД в памяти живёт ровно столько, сколько её соединение.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("ошибка выполнения %s: %w", p, err)
		}
	}

	if err := db.AutoMigrate(
		&userRow{},
		&achievementRow{},
		&transactionRow{},
		&statsRow{},
		&awardRow{},
	); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ошибка миграции SQLite: %w", err)
	}

	return &Store{db: db}, nil
}
