package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/user"
)

// RollbarLogger prints to a std logger and reports to Rollbar when a token is configured.
// Debug messages are dropped unless the app runs in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// entry is a log call split into what rollbar and the std logger need.
// expected args: error, map[string]interface{}, user.User (anything else is printed as is)
type entry struct {
	msg    string
	err    error
	fields map[string]interface{}
	usr    *user.User
	extra  []interface{}
}

func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(map[string]interface{})}
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if e.err == nil {
				e.err = a
			} else {
				e.extra = append(e.extra, a)
			}
		case map[string]interface{}:
			for k, v := range a {
				e.fields[k] = v
			}
		case user.User:
			if e.usr == nil { // only one person per item
				usr := a
				e.usr = &usr
			}
		default:
			e.extra = append(e.extra, a)
		}
	}
	return e
}

func (e entry) rollbarArgs() []interface{} {
	if e.usr != nil {
		rollbar.SetPerson(fmt.Sprint(e.usr.ID), e.usr.Name, e.usr.Email)
	} else {
		rollbar.ClearPerson()
	}

	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if len(e.fields) > 0 {
		args = append(args, e.fields)
	}
	return args
}

// line formats the entry as `LEVEL msg key=value ... error=...`, keys sorted.
func (e entry) line(level string) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(e.msg)

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	if e.usr != nil {
		fmt.Fprintf(&b, " user_id=%d", e.usr.ID)
	}
	if e.err != nil {
		fmt.Fprintf(&b, " error=%q", e.err.Error())
	}
	for _, x := range e.extra {
		fmt.Fprintf(&b, " %+v", x)
	}
	return b.String()
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	e := newEntry(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.std.Println(e.line("DEBUG"))
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.std.Println(e.line("INFO"))
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.std.Println(e.line("WARN"))
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.std.Println(e.line("ERROR"))
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	rollbar.Wait()
	l.std.Fatal(e.line("FATAL"))
}
