package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/user"
)

type userApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(app *echo.Echo, jwt echo.MiddlewareFunc, opts *Options) {
	api := userApi{
		svc:      opts.UserSvc,
		validate: opts.Validate,
	}

	// un-authed endpoints
	// TODO: rate limit `/forgot-password` & `/verify-otp`
	app.POST("/signup", api.signup)
	app.GET("/verify-email", api.verifyEmail)
	app.POST("/login", api.login)
	app.POST("/forgot-password", api.forgotPassword)
	app.POST("/verify-otp", api.verifyOTP)
	app.POST("/update-password", api.updatePassword)

	// authed endpoints
	pg := app.Group("/profile", jwt)
	pg.GET("", api.profile)
	pg.PUT("", api.updateProfile)
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		// the account may be persisted even when the verification email
		// could not go out; the error handler reports that as 502
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) verifyEmail(ctx echo.Context) error {
	if _, err := api.svc.VerifyEmail(ctx.Request().Context(), ctx.QueryParam("token")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email verified. You can now log in."})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	ctx.Response().Header().Set(authHeader, token)
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "An OTP has been sent to your email address."})
}

func (api *userApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ticket, err := api.svc.RedeemResetCode(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ResetTicketResponse{ResetTicket: ticket})
}

func (api *userApi) updatePassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.UserID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
