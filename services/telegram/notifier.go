package telegramsvc

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/services/reminder"
)

// max sessions listed in one message
const maxListed = 10

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends overdue digests to the users' Telegram chat.
type Notifier struct {
	bot  sender
	conf *core.Config
}

var _ remindersvc.Notifier = (*Notifier)(nil)

// NewNotifier connects to the bot API with `telegramToken`.
func NewNotifier(conf *core.Config) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(conf.TelegramToken)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to telegram")
	}
	bot.Debug = conf.Debug
	return &Notifier{bot: bot, conf: conf}, nil
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Notify(_ context.Context, usr user.User, d schedule.Digest) error {
	if !usr.TelegramChatID.Valid {
		return remindersvc.ErrNoChannel
	}
	msg := tgbotapi.NewMessage(usr.TelegramChatID.Int64, n.text(usr, d))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return errors.Wrap(err, "sending telegram message")
	}
	return nil
}

func (n *Notifier) text(usr user.User, d schedule.Digest) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Olá %s! Você tem %d sessão(ões) atrasada(s) no plano \"%s\":\n", usr.Name, len(d.Sessions), d.PlanName)
	for i, s := range d.Sessions {
		if i == maxListed {
			_, _ = fmt.Fprintf(&b, "… e mais %d\n", len(d.Sessions)-maxListed)
			break
		}
		_, _ = fmt.Fprintf(&b, "• %s: %s - %s\n", s.SessionDate.Format("02/01"), s.SubjectName, s.Description)
	}
	_, _ = fmt.Fprintf(&b, "\n%s/plans/%d", n.conf.FrontendBaseURL, d.PlanID)
	return b.String()
}
