package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core"
)

// max rows per multi-row INSERT
const insertChunkSize = 500

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps the sql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// insert runs an `INSERT … RETURNING id` query written with `?` placeholders.
func insert(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	var id int64
	err := exec.QueryRowxContext(ctx, exec.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// namedInsert inserts rows with one multi-row INSERT per chunk.
func namedInsert(ctx context.Context, exec core.DBExecutor, query string, rows int, chunk func(from, to int) interface{}) (int, error) {
	var n int
	for from := 0; from < rows; from += insertChunkSize {
		to := from + insertChunkSize
		if to > rows {
			to = rows
		}
		res, err := sqlx.NamedExecContext(ctx, exec, query, chunk(from, to))
		if err != nil {
			return n, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return n, err
		}
		n += int(affected)
	}
	return n, nil
}

func orderBy(ordering []core.DBOrdering, allowed map[string]bool) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
