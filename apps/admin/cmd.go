package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
	"github.com/trezcool/cronograma/core/user"
	"github.com/trezcool/cronograma/services/importer"
	remindersvc "github.com/trezcool/cronograma/services/reminder"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sqlx.DB
	conf      *core.Config
	out       io.Writer
	users     *user.Service
	plans     plan.Repository
	schedules *schedule.Service
	sessions  *session.Service
	importer  *importer.Importer
	reminders *remindersvc.Service
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                     - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-timezone TZ] [-telegram CHAT_ID] - create a user")
	_, _ = fmt.Fprintln(cli.out, "  token -email EMAIL                         - print an API token for the user")
	_, _ = fmt.Fprintln(cli.out, "  generate -plan ID                          - regenerate the plan's schedule")
	_, _ = fmt.Fprintln(cli.out, "  import -plan ID -file PATH                 - import subjects and topics from a xlsx or csv file")
	_, _ = fmt.Fprintln(cli.out, "  reconcile [-fix]                           - list (and fix) sessions whose time logs disagree with time studied")
	_, _ = fmt.Fprintln(cli.out, "  repair-owners                              - set sessions' owner from their plan")
	_, _ = fmt.Fprintln(cli.out, "  remind                                     - send the overdue reminders now")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserTZ := addUserCmd.String("timezone", "", "The user's IANA timezone. Defaults to the app timezone.")
	addUserTelegram := addUserCmd.Int64("telegram", 0, "The user's Telegram chat id, for reminders.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenEmail := tokenCmd.String("email", "", "The user's email.")

	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	generatePlan := generateCmd.Int64("plan", 0, "The study plan id.")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importPlan := importCmd.Int64("plan", 0, "The study plan id.")
	importFile := importCmd.String("file", "", "The xlsx or csv file: subject, weight, topic, priority rows.")

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ExitOnError)
	reconcileFix := reconcileCmd.Bool("fix", false, "Set time studied to the logged time.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Name:           *addUserName,
			Email:          *addUserEmail,
			Timezone:       *addUserTZ,
			TelegramChatID: *addUserTelegram,
		})
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenEmail)
	case "generate":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generatePlan <= 0 {
			generateCmd.Usage()
			return errHelp
		}
		return cli.generate(*generatePlan)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importPlan <= 0 || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importFile(*importPlan, *importFile)
	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.reconcile(*reconcileFix)
	case "repair-owners":
		return cli.repairOwners()
	case "remind":
		return cli.remind()
	default:
		cli.printUsage()
		return errHelp
	}
}
