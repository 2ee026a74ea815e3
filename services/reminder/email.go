package remindersvc

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/user"
)

const overdueTemplate = "overdue_reminder"

type (
	digestEntry struct {
		Date        string
		Subject     string
		Description string
	}

	digestData struct {
		Name     string
		Count    int
		PlanID   int64
		PlanName string
		Sessions []digestEntry
	}

	// EmailNotifier sends digests with the `overdue_reminder` email template.
	EmailNotifier struct {
		mailSvc core.EmailService
	}
)

var _ Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService) *EmailNotifier {
	return &EmailNotifier{mailSvc: mailSvc}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(_ context.Context, usr user.User, d schedule.Digest) error {
	if usr.Email == "" {
		return ErrNoChannel
	}
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.Address()},
		Subject:      fmt.Sprintf("%d sessões atrasadas em %s", len(d.Sessions), d.PlanName),
		TemplateName: overdueTemplate,
		TemplateData: dataOf(usr, d),
	})
	return nil
}

func dataOf(usr user.User, d schedule.Digest) digestData {
	data := digestData{
		Name:     usr.Name,
		Count:    len(d.Sessions),
		PlanID:   d.PlanID,
		PlanName: d.PlanName,
		Sessions: make([]digestEntry, 0, len(d.Sessions)),
	}
	for _, s := range d.Sessions {
		data.Sessions = append(data.Sessions, digestEntry{
			Date:        s.SessionDate.Format("02/01"),
			Subject:     s.SubjectName,
			Description: s.Description,
		})
	}
	return data
}
