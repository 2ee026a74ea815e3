package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/cronograma/apps/api/echo"
	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/schedule"
)

func (cli *commandLine) token(email string) error {
	usr, err := cli.users.GetByEmail(context.Background(), email)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}

// generate regenerates the plan's schedule on behalf of its owner, with the plan's saved settings.
func (cli *commandLine) generate(planID int64) error {
	ctx := context.Background()
	p, err := cli.plans.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	res, err := cli.schedules.GenerateSchedule(ctx, p.UserID, p.ID, schedule.GenerateParams{})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "plan %d: %d sessions created (%d new topics, %d reviews, %d essays), %d pending deleted\n",
		p.ID, res.SessionsCreated, res.NewTopicSessions, res.ReviewSessions, res.EssaySessions, res.SessionsDeleted)
	if res.RetaFinalApplied {
		_, _ = fmt.Fprintf(cli.out, "reta final: %d topics dropped\n", len(res.DroppedTopics))
	}
	if res.Deficit != nil {
		_, _ = fmt.Fprintf(cli.out, "warning: %s\n", res.Deficit.Message)
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(cli.out, "warning: %s\n", w)
	}
	return nil
}

func (cli *commandLine) importFile(planID int64, path string) error {
	res, err := cli.importer.ImportFile(context.Background(), planID, path)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d rows: %d subjects and %d topics created, %d skipped\n",
		res.Rows, res.SubjectsCreated, res.TopicsCreated, res.Skipped)
	if len(res.Errors) > 0 {
		_, _ = fmt.Fprintln(cli.out, strings.Join(res.Errors, "\n"))
	}
	return nil
}

func (cli *commandLine) reconcile(fix bool) error {
	discrepancies, err := cli.sessions.Reconcile(context.Background(), fix)
	if err != nil {
		return err
	}
	for _, d := range discrepancies {
		_, _ = fmt.Fprintf(cli.out, "session %d: time studied %ds, logged %ds in %d logs\n",
			d.SessionID, d.TimeStudiedSeconds, d.LoggedSeconds, d.Logs)
	}
	verb := "found"
	if fix {
		verb = "fixed"
	}
	_, _ = fmt.Fprintf(cli.out, "%d discrepancies %s\n", len(discrepancies), verb)
	return nil
}

func (cli *commandLine) repairOwners() error {
	n, err := cli.sessions.RepairOwners(context.Background())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d sessions repaired\n", n)
	return nil
}

func (cli *commandLine) remind() error {
	report, err := cli.reminders.SendReminders(context.Background())
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	_, _ = fmt.Fprintf(cli.out, "%d overdue digests: %d sent, %d failed (%s)\n",
		report.Digests, report.Sent, report.Failed, core.Now().Format(core.DateLayout))
	return nil
}
