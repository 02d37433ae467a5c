// Package members — service.go содержит операции над справочником.
package members

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Directory — хранилище справочника.
type Directory interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	UpsertUser(ctx context.Context, u *User) error
}

// Service управляет справочником пользователей.
type Service struct {
	dir Directory
}

// NewService создаёт сервис справочника.
func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// Register добавляет пользователя или обновляет имя существующего.
// externalID не может быть пустым и не может содержать '/'.
func (s *Service) Register(ctx context.Context, externalID, displayName string) (*User, error) {
	externalID = strings.TrimPrefix(strings.TrimSpace(externalID), "@")
	if externalID == "" {
		return nil, fmt.Errorf("пустой внешний ID")
	}
	if strings.ContainsAny(externalID, "/ ") {
		return nil, fmt.Errorf("некорректный внешний ID %q", externalID)
	}

	u := &User{ExternalID: externalID, DisplayName: strings.TrimSpace(displayName)}
	if err := s.dir.UpsertUser(ctx, u); err != nil {
		return nil, fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":     u.ID,
		"external_id": u.ExternalID,
	}).Info("Пользователь зарегистрирован")
	return u, nil
}

// List возвращает всех пользователей по возрастанию ID.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.dir.ListUsers(ctx)
}

// Get возвращает пользователя по ID (ErrUserNotFound, если нет).
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.dir.GetUser(ctx, id)
}
