package remindersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/user"
)

const runTimeout = 5 * time.Minute

type (
	// DigestSource lists the plans with overdue sessions.
	DigestSource interface {
		OverdueDigests(ctx context.Context) ([]schedule.Digest, error)
	}

	UserLister interface {
		ListUsersByID(ctx context.Context, ids []int64, exec ...core.DBExecutor) ([]user.User, error)
	}

	// Notifier delivers one overdue digest to its owner.
	// It returns ErrNoChannel when the user cannot be reached through it.
	Notifier interface {
		Name() string
		Notify(ctx context.Context, usr user.User, d schedule.Digest) error
	}

	// Report is the outcome of one reminder run.
	Report struct {
		Digests int
		Sent    int
		Failed  int
	}

	Service struct {
		digests   DigestSource
		users     UserLister
		notifiers []Notifier
		logger    core.Logger
		conf      *core.Config
		scheduler *gocron.Scheduler
	}
)

var ErrNoChannel = errors.New("user has no contact on this channel")

func NewService(digests DigestSource, users UserLister, notifiers []Notifier, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		digests:   digests,
		users:     users,
		notifiers: notifiers,
		logger:    logger,
		conf:      conf,
	}
}

// Start runs the reminders every day at `scheduler.reminderAt` in the default timezone.
func (svc *Service) Start() error {
	s := gocron.NewScheduler(svc.conf.Location())
	s.SingletonModeAll()
	if _, err := s.Every(1).Day().At(svc.conf.Scheduler.ReminderAt).Do(svc.run); err != nil {
		return errors.Wrap(err, "scheduling reminders")
	}
	s.StartAsync()
	svc.scheduler = s
	svc.logger.Info("reminders scheduled", map[string]interface{}{"at": svc.conf.Scheduler.ReminderAt})
	return nil
}

func (svc *Service) Stop() {
	if svc.scheduler != nil {
		svc.scheduler.Stop()
	}
}

func (svc *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := svc.SendReminders(ctx); err != nil {
		svc.logger.Error(fmt.Sprintf("sending reminders: %v", err), err)
	}
}

// SendReminders sends every overdue digest through every notifier reaching its owner.
// A failing notifier is logged and does not stop the run.
func (svc *Service) SendReminders(ctx context.Context) (Report, error) {
	var report Report
	digests, err := svc.digests.OverdueDigests(ctx)
	if err != nil {
		return report, errors.Wrap(err, "listing overdue digests")
	}
	report.Digests = len(digests)
	if len(digests) == 0 {
		return report, nil
	}

	seen := make(map[int64]bool)
	ids := make([]int64, 0, len(digests))
	for _, d := range digests {
		if !seen[d.UserID] {
			seen[d.UserID] = true
			ids = append(ids, d.UserID)
		}
	}
	users, err := svc.users.ListUsersByID(ctx, ids)
	if err != nil {
		return report, errors.Wrap(err, "listing users")
	}
	byID := make(map[int64]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, d := range digests {
		usr, ok := byID[d.UserID]
		if !ok {
			continue
		}
		for _, n := range svc.notifiers {
			err := n.Notify(ctx, usr, d)
			switch {
			case err == nil:
				report.Sent++
			case errors.Cause(err) == ErrNoChannel:
			default:
				report.Failed++
				svc.logger.Error(fmt.Sprintf("%s reminder: %v", n.Name(), err), err, map[string]interface{}{"plan_id": d.PlanID}, usr)
			}
		}
	}
	svc.logger.Info("reminders sent", map[string]interface{}{"digests": report.Digests, "sent": report.Sent, "failed": report.Failed})
	return report, nil
}
