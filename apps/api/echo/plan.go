package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cronograma/core/plan"
)

type (
	PlanResponse struct {
		Plan     plan.StudyPlan `json:"plan"`
		Warnings []string       `json:"warnings"`
	}

	SubjectResponse struct {
		Subject  plan.Subject `json:"subject"`
		Warnings []string     `json:"warnings"`
	}

	TopicsRequest struct {
		Topics []string `json:"topics"`
	}

	TopicsResponse struct {
		Topics   []plan.Topic `json:"topics"`
		Warnings []string     `json:"warnings"`
	}

	planApi struct {
		svc *plan.Service
	}
)

func registerPlanAPI(g *echo.Group, svc *plan.Service) {
	api := planApi{svc: svc}

	pg := g.Group("/plans")
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
	pg.GET("/:id/subjects", api.querySubjects)
	pg.POST("/:id/subjects", api.createSubject)

	sg := g.Group("/subjects")
	sg.PUT("/:id", api.updateSubject)
	sg.DELETE("/:id", api.destroySubject)
	sg.POST("/:id/topics", api.addTopics)
}

func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

func (api *planApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data plan.NewPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}

	p, warnings, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, PlanResponse{Plan: p, Warnings: warningsOrEmpty(warnings)})
}

func (api *planApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	plans, err := api.svc.List(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing plans")
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "getting plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data plan.UpdatePlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}

	p, warnings, err := api.svc.Update(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, PlanResponse{Plan: p, Warnings: warningsOrEmpty(warnings)})
}

func (api *planApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr.ID, id); err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *planApi) querySubjects(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	subjects, err := api.svc.ListSubjects(ctx.Request().Context(), usr.ID, id)
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *planApi) createSubject(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data plan.NewSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}

	subj, warnings, err := api.svc.AddSubject(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "adding subject")
	}
	return ctx.JSON(http.StatusCreated, SubjectResponse{Subject: subj, Warnings: warningsOrEmpty(warnings)})
}

func (api *planApi) updateSubject(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data plan.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}

	subj, err := api.svc.UpdateSubject(ctx.Request().Context(), usr.ID, id, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *planApi) destroySubject(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), usr.ID, id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *planApi) addTopics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	var data TopicsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TopicsRequest")
	}

	topics, warnings, err := api.svc.AddTopics(ctx.Request().Context(), usr.ID, id, data.Topics)
	if err != nil {
		return errors.Wrap(err, "adding topics")
	}
	return ctx.JSON(http.StatusCreated, TopicsResponse{Topics: topics, Warnings: warningsOrEmpty(warnings)})
}
