package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
)

type courseApi struct {
	svc       *course.Service
	enrollSvc *enroll.Service
	uploadSvc core.UploadService
	validate  *validator.Validate
}

func registerCourseAPI(app *echo.Echo, jwt echo.MiddlewareFunc, opts *Options) {
	api := courseApi{
		svc:       opts.CourseSvc,
		enrollSvc: opts.EnrollSvc,
		uploadSvc: opts.UploadSvc,
		validate:  opts.Validate,
	}

	// public browse
	app.GET("/courses", api.list)
	app.GET("/courses/:id", api.retrieve)

	// discussion threads
	tg := app.Group("/courses/:id/thread", jwt)
	tg.GET("", api.getThread)
	tg.POST("", api.postMessage)

	// instructor endpoints
	instructor := instructorMiddleware()
	app.POST("/uploads", api.requestUpload, jwt, instructor)
	app.POST("/create-course", api.create, jwt, instructor)

	ig := app.Group("/instructor-dashboard", jwt, instructor)
	ig.GET("/courses", api.instructorCourses)
	ig.GET("/earnings", api.earnings)
}

// Handlers

func (api *courseApi) list(ctx echo.Context) error {
	courses, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// ownership always follows the authenticated instructor
	crs, err := api.svc.Create(ctx.Request().Context(), claims.Email, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) instructorCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	courses, err := api.svc.FilterByInstructor(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "querying instructor courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) earnings(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	earnings, err := api.enrollSvc.InstructorEarnings(ctx.Request().Context(), claims.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, earnings)
}

func (api *courseApi) requestUpload(ctx echo.Context) error {
	var data UploadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UploadRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pending, err := api.uploadSvc.RequestUpload(ctx.Request().Context(), data.Kind, data.Filename)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *courseApi) getThread(ctx echo.Context) error {
	thread, err := api.svc.GetThread(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, thread)
}

func (api *courseApi) postMessage(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data ThreadPostRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ThreadPostRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), ctx.Param("id"), claims.Name, data.Body)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}
