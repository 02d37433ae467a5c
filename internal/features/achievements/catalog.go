// Package achievements — catalog.go загружает каталог достижений из YAML.
package achievements

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/ledger"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Achievements []catalogEntry `yaml:"achievements"`
}

type catalogEntry struct {
	ID          int64  `yaml:"id"`
	Action      string `yaml:"action"`
	Threshold   int64  `yaml:"threshold"`
	Level       int    `yaml:"level"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DefaultCatalog возвращает встроенный каталог.
func DefaultCatalog() ([]Achievement, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalog))
}

// LoadCatalogFile читает каталог из файла. Пустой путь означает встроенный каталог.
func LoadCatalogFile(path string) ([]Achievement, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие каталога %s: %w", path, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog разбирает и проверяет каталог.
// Требования: уникальные ID > 0, известный тип действия, порог >= 1, непустое имя.
func LoadCatalog(r io.Reader) ([]Achievement, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidCatalog, err)
	}
	if len(file.Achievements) == 0 {
		return nil, fmt.Errorf("%w: нет ни одного достижения", common.ErrInvalidCatalog)
	}

	seen := make(map[int64]bool, len(file.Achievements))
	defs := make([]Achievement, 0, len(file.Achievements))
	for i, e := range file.Achievements {
		if e.ID <= 0 {
			return nil, fmt.Errorf("%w: запись %d: id должен быть > 0", common.ErrInvalidCatalog, i+1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: повторяется id %d", common.ErrInvalidCatalog, e.ID)
		}
		seen[e.ID] = true

		action, err := ledger.ParseActionType(e.Action)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d: %v", common.ErrInvalidCatalog, e.ID, err)
		}
		if e.Threshold < 1 {
			return nil, fmt.Errorf("%w: id %d: порог должен быть >= 1", common.ErrInvalidCatalog, e.ID)
		}
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("%w: id %d: пустое имя", common.ErrInvalidCatalog, e.ID)
		}

		defs = append(defs, Achievement{
			ID:              e.ID,
			ActionType:      action,
			NumberOfActions: e.Threshold,
			Name:            strings.TrimSpace(e.Name),
			Description:     strings.TrimSpace(e.Description),
			Level:           e.Level,
		})
	}
	return defs, nil
}
