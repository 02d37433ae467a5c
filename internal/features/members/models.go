// Package members — справочник разработчиков, чью активность считает движок.
// models.go описывает пользователя справочника.
package members

import "time"

// User — разработчик. Движок только читает справочник;
// записи заводит оператор через `devscore users add`.
type User struct {
	ID          int64     `db:"id"`           // Автоинкрементный ID записи в БД
	ExternalID  string    `db:"external_id"`  // ID или username в GitLab (уникальный)
	DisplayName string    `db:"display_name"` // Отображаемое имя (может быть пустым)
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Name возвращает отображаемое имя пользователя.
// Если имени нет — возвращает внешний ID с префиксом @.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return "@" + u.ExternalID
}
