package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core/plan"
	"github.com/trezcool/cronograma/core/schedule"
	"github.com/trezcool/cronograma/core/session"
)

type (
	OverdueResponse struct {
		Count    int               `json:"count"`
		Sessions []session.Session `json:"sessions"`
	}

	scheduleApi struct {
		svc      *schedule.Service
		plans    *plan.Service
		sessions *session.Service
	}
)

func registerScheduleAPI(g *echo.Group, svc *schedule.Service, plans *plan.Service, sessions *session.Service) {
	api := scheduleApi{svc: svc, plans: plans, sessions: sessions}

	pg := g.Group("/plans/:id")
	pg.POST("/schedule", api.generate)
	pg.GET("/schedule/preview", api.preview)
	pg.GET("/schedule/replan-preview", api.replanPreview)
	pg.GET("/schedule/overdue", api.overdue)
	pg.GET("/schedule/exclusions", api.exclusions)
	pg.GET("/progress", api.progress)
	pg.GET("/sessions", api.querySessions)
}

func (api *scheduleApi) generate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data schedule.GenerateParams
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateParams")
	}

	res, err := api.svc.GenerateSchedule(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "generating schedule")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *scheduleApi) preview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	pv, err := api.svc.GetSchedulePreview(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "building preview")
	}
	return ctx.JSON(http.StatusOK, pv)
}

// replanPreview shows what regenerating with the plan's saved settings would do.
func (api *scheduleApi) replanPreview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	pv, err := api.svc.PreviewGeneration(ctx.Request().Context(), usr.ID, id, schedule.GenerateParams{})
	if err != nil {
		return errors.Wrap(err, "previewing regeneration")
	}
	return ctx.JSON(http.StatusOK, pv)
}

func (api *scheduleApi) overdue(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	sessions, err := api.svc.GetOverdue(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "listing overdue sessions")
	}
	return ctx.JSON(http.StatusOK, OverdueResponse{Count: len(sessions), Sessions: sessions})
}

func (api *scheduleApi) exclusions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	excl, err := api.svc.ListExclusions(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "listing exclusions")
	}
	return ctx.JSON(http.StatusOK, excl)
}

func (api *scheduleApi) progress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	pr, err := api.svc.GetProgress(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, pr)
}

func (api *scheduleApi) querySessions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.plans.Get(ctx.Request().Context(), usr.ID, id); err != nil {
		return errors.Wrap(err, "getting plan")
	}

	filter, err := bindSessionFilter(ctx)
	if err != nil {
		return err
	}
	filter.PlanID = id
	var ord Ordering
	ord.Bind(ctx)

	sessions, err := api.sessions.List(ctx.Request().Context(), usr.ID, filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}
