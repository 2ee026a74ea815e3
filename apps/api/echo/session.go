package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core/session"
)

type sessionApi struct {
	svc *session.Service
}

func registerSessionAPI(g *echo.Group, svc *session.Service) {
	api := sessionApi{svc: svc}

	sg := g.Group("/sessions/:id")
	sg.GET("", api.retrieve)
	sg.POST("/complete", api.complete)
	sg.POST("/skip", api.skip)
	sg.GET("/time-logs", api.queryTimeLogs)
	sg.POST("/time-logs", api.logTime)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) complete(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data session.CompleteSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteSession")
	}

	s, err := api.svc.Complete(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "completing session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) skip(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	s, err := api.svc.Skip(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "skipping session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) queryTimeLogs(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	logs, err := api.svc.TimeLogs(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "listing time logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *sessionApi) logTime(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data session.NewTimeLog
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTimeLog")
	}

	l, err := api.svc.LogTime(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "logging time")
	}
	return ctx.JSON(http.StatusCreated, l)
}
