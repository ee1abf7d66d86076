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

type studentApi struct {
	enrollSvc *enroll.Service
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerStudentAPI(app *echo.Echo, jwt echo.MiddlewareFunc, opts *Options) {
	api := studentApi{
		enrollSvc: opts.EnrollSvc,
		courseSvc: opts.CourseSvc,
		validate:  opts.Validate,
	}

	app.PUT("/users/addCourse", api.addCourse, jwt)
	app.POST("/users/check-course-purchase", api.checkPurchase, jwt)

	sg := app.Group("/student-dashboard", jwt)
	sg.GET("/my-courses", api.myCourses)
	sg.POST("/update-progress", api.updateProgress)
	sg.GET("/course-content", api.courseContent)
	sg.GET("/certificate", api.certificate)
}

// Handlers

func (api *studentApi) addCourse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data PurchaseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PurchaseRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.enrollSvc.Purchase(ctx.Request().Context(), claims.UserID(), data.CourseID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Course added to your account."})
}

func (api *studentApi) checkPurchase(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data PurchaseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PurchaseRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	purchased, err := api.enrollSvc.IsPurchased(ctx.Request().Context(), claims.UserID(), data.CourseID)
	if err != nil {
		return errors.Wrap(err, "checking purchase")
	}
	return ctx.JSON(http.StatusOK, PurchasedResponse{Purchased: purchased})
}

func (api *studentApi) myCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	courses, err := api.enrollSvc.ListPurchasedWithProgress(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *studentApi) updateProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data ProgressUpdateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressUpdateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err := api.enrollSvc.RecordProgress(reqCtx, claims.UserID(), data.CourseID, data.SectionID); err != nil {
		return err
	}
	pr, err := api.enrollSvc.GetProgress(reqCtx, claims.UserID(), data.CourseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pr)
}

// courseContent serves a purchased course together with the student's
// progress record.
func (api *studentApi) courseContent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	courseID := core.CleanString(ctx.QueryParam("course_id"))
	if courseID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "this field is required"})
	}

	reqCtx := ctx.Request().Context()
	purchased, err := api.enrollSvc.IsPurchased(reqCtx, claims.UserID(), courseID)
	if err != nil {
		return errors.Wrap(err, "checking purchase")
	}
	if !purchased {
		return enroll.ErrNotPurchased
	}

	crs, err := api.courseSvc.GetByID(reqCtx, courseID)
	if err != nil {
		return err
	}
	pr, err := api.enrollSvc.GetProgress(reqCtx, claims.UserID(), courseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"course": crs, "progress": pr})
}

func (api *studentApi) certificate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	courseID := core.CleanString(ctx.QueryParam("course_id"))
	if courseID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "this field is required"})
	}

	cert, err := api.enrollSvc.Certificate(ctx.Request().Context(), claims.UserID(), claims.Name, courseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}
