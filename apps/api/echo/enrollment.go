package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/enrollment"
)

type enrollmentApi struct {
	svc       enrollment.Service
	courseSvc course.Service
}

func registerEnrollmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc enrollment.Service,
	courseSvc course.Service,
) {
	api := enrollmentApi{
		svc:       svc,
		courseSvc: courseSvc,
	}

	// lesson reading goes through the access gate; anonymous viewers still
	// get the preview slice of published courses
	g.GET("/courses/:id/lessons", api.queryLessons, optionalAuth(jwt))
	g.GET("/lessons/:id", api.openLesson, optionalAuth(jwt))

	ag := g.Group("", jwt)
	ag.POST("/courses/:id/enroll", api.enroll)
	ag.POST("/courses/:id/lessons/:lessonID/complete", api.completeLesson)
	ag.GET("/courses/:id/enrollments", api.queryByCourse)
	ag.GET("/me/enrollments", api.queryMine)
	ag.GET("/me/enrollments/:courseID", api.retrieveMine)
}

// Handlers

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	enr, err := api.svc.Enroll(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling in course")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) completeLesson(ctx echo.Context) error {
	enr, err := api.svc.MarkLessonComplete(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), ctx.Param("lessonID"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) queryLessons(ctx echo.Context) error {
	lessons, err := api.svc.AccessibleLessons(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resolving lesson access")
	}
	if lessons == nil {
		lessons = []enrollment.LessonAccess{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *enrollmentApi) openLesson(ctx echo.Context) error {
	lsn, err := api.svc.OpenLesson(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *enrollmentApi) queryMine(ctx echo.Context) error {
	prin := contextPrincipal(ctx)
	enrollments, err := api.svc.QueryByUser(ctx.Request().Context(), prin, prin.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) retrieveMine(ctx echo.Context) error {
	prin := contextPrincipal(ctx)
	enr, err := api.svc.Get(ctx.Request().Context(), prin, prin.ID, ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "finding enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) queryByCourse(ctx echo.Context) error {
	enrollments, err := api.svc.QueryByCourse(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying course enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
