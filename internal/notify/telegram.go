// Package notify — telegram.go отправляет уведомления в чат Telegram.
package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/devscore/internal/features/achievements"
	"serotonyl.ru/devscore/internal/features/members"
)

// Telegram публикует награды в один чат.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegram создаёт бота. opts пробрасываются в telego (например, адрес API в тестах).
func NewTelegram(token string, chatID int64, opts ...telego.BotOption) (*Telegram, error) {
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// NotifyAwards отправляет одно сообщение со всеми новыми наградами пользователя.
func (t *Telegram) NotifyAwards(ctx context.Context, user members.User, unlocked []achievements.Achievement) error {
	if len(unlocked) == 0 {
		return nil
	}
	msg := tu.Message(tu.ID(t.chatID), FormatAwards(user, unlocked)).
		WithParseMode(telego.ModeHTML)

	if _, err := t.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки уведомления: %w", err)
	}

	log.WithFields(log.Fields{
		"chat_id": t.chatID,
		"user_id": user.ID,
		"awards":  len(unlocked),
	}).Debug("Уведомление о наградах отправлено")
	return nil
}
