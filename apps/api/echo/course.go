package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/user"
)

type courseApi struct {
	svc      course.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	cg := g.Group("/courses")

	// catalog endpoints; authentication widens what is visible
	cg.GET("", api.query, optionalAuth(jwt))
	cg.GET("/levels", api.queryLevels)
	cg.GET("/:id", api.retrieve, optionalAuth(jwt))

	// authoring endpoints
	ag := cg.Group("", jwt)
	ag.POST("", api.create, roleMiddleware(user.RoleInstructor, user.RoleAdmin))
	ag.GET("/stats", api.instructorStats)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/publish", api.publish)
	ag.POST("/:id/unpublish", api.unpublish)
	ag.DELETE("/:id", api.destroy, adminMiddleware())

	ag.POST("/:id/lessons", api.addLesson)
	ag.POST("/:id/lessons/reorder", api.reorderLessons)

	lg := g.Group("/lessons", jwt)
	lg.PUT("/:id", api.updateLesson)
	lg.DELETE("/:id", api.destroyLesson)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), ctxUsr.Principal(), ctxUsr.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), contextPrincipal(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	prin := contextPrincipal(ctx)

	crs, err := api.svc.Get(reqCtx, prin, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(crs, api.validate); err != nil {
		return err
	}

	crs, err = api.svc.Update(reqCtx, prin, crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *courseApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *courseApi) setPublished(ctx echo.Context, published bool) error {
	crs, err := api.svc.SetPublished(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), published)
	if err != nil {
		return errors.Wrap(err, "setting course publication")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// instructorStats serves the instructor dashboard aggregates. Without an
// instructor_id query param it reports on the requesting instructor.
func (api *courseApi) instructorStats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), contextPrincipal(ctx), ctx.QueryParam("instructor_id"))
	if err != nil {
		return errors.Wrap(err, "getting instructor stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *courseApi) queryLevels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, course.AllLevels)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.svc.AddLesson(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *courseApi) updateLesson(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	lsn, err := api.svc.GetLesson(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lesson by ID")
	}

	var data course.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err := data.Validate(lsn, api.validate); err != nil {
		return err
	}

	lsn, err = api.svc.UpdateLesson(reqCtx, contextPrincipal(ctx), lsn.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	if err := api.svc.DeleteLesson(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ReorderLessonsRequest struct {
	LessonIDs []string `json:"lesson_ids" validate:"required,min=1"`
}

func (rr *ReorderLessonsRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(rr)
}

func (api *courseApi) reorderLessons(ctx echo.Context) error {
	var data ReorderLessonsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderLessonsRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lessons, err := api.svc.ReorderLessons(ctx.Request().Context(), contextPrincipal(ctx), ctx.Param("id"), data.LessonIDs)
	if err != nil {
		return errors.Wrap(err, "reordering lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}
