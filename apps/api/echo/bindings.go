package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/cronograma/core"
	"github.com/trezcool/cronograma/core/session"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindSessionFilter reads the `status`, `type`, `from` and `to` query params.
func bindSessionFilter(ctx echo.Context) (session.ListFilter, error) {
	var filter session.ListFilter
	fldErrs := make([]core.FieldError, 0)

	if v := ctx.QueryParam("status"); v != "" {
		st, err := session.ParseStatus(v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "status", Error: err.Error()})
		}
		filter.Status = st
	}
	if v := ctx.QueryParam("type"); v != "" {
		typ, err := session.ParseType(v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "type", Error: err.Error()})
		}
		filter.Type = typ
	}
	for _, p := range []struct {
		name string
		dest *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := ctx.QueryParam(p.name)
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: p.name, Error: "must be a YYYY-MM-DD date"})
			continue
		}
		*p.dest = d
	}

	if len(fldErrs) > 0 {
		return filter, core.NewValidationError(nil, fldErrs...)
	}
	return filter, nil
}

// pathID returns the `param` path param; malformed ids are not found.
func pathID(ctx echo.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}
