// Package notify сообщает о новых наградах. Отправка идёт после фиксации
// цикла и не влияет на его результат: ошибка только логируется.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"serotonyl.ru/devscore/internal/common"
	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/members"
)

// Notifier отправляет уведомление о новых достижениях пользователя.
type Notifier interface {
	NotifyAwards(ctx context.Context, user members.User, unlocked []achievements.Achievement) error
}

// Nop ничего не отправляет. Используется, когда Telegram не настроен.
type Nop struct{}

func (Nop) NotifyAwards(context.Context, members.User, []achievements.Achievement) error {
	return nil
}

// FormatAwards собирает HTML-текст сообщения о наградах.
//
// Пример:
//
//	🏆 Иван Петров получил 2 достижения:
//	• <b>Первый push</b>: Отправить первый коммит
//	• <b>Разогрев</b> (ур. 2): Отправить 5 коммитов
func FormatAwards(user members.User, unlocked []achievements.Achievement) string {
	var b strings.Builder
	n := int64(len(unlocked))
	fmt.Fprintf(&b, "🏆 %s получил %s:\n", html.EscapeString(user.Name()), common.FormatCount(n, common.PluralizeAchievements))
	for _, a := range unlocked {
		b.WriteString("• <b>")
		b.WriteString(html.EscapeString(a.Name))
		b.WriteString("</b>")
		if a.Level > 1 {
			fmt.Fprintf(&b, " (ур. %d)", a.Level)
		}
		if a.Description != "" {
			b.WriteString(": ")
			b.WriteString(html.EscapeString(a.Description))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
