package echoapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/darasahq/darasa/core"
)

// strictBinder decodes JSON request bodies rejecting unknown fields, so a
// mistyped or extraneous key fails loudly instead of being dropped.
type strictBinder struct{}

var _ echo.Binder = strictBinder{}

func (strictBinder) Bind(i interface{}, ctx echo.Context) error {
	req := ctx.Request()
	if req.ContentLength == 0 {
		return nil
	}

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		if fld := unknownFieldName(err); fld != "" {
			return core.NewValidationError(nil, core.FieldError{Field: fld, Error: "unknown field"})
		}
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	return nil
}

// unknownFieldName extracts the offending key from encoding/json's
// "json: unknown field" error. Empty for any other decode failure.
func unknownFieldName(err error) string {
	const prefix = `json: unknown field `
	msg := err.Error()
	if !strings.HasPrefix(msg, prefix) {
		return ""
	}
	fld, uerr := strconv.Unquote(strings.TrimPrefix(msg, prefix))
	if uerr != nil {
		return ""
	}
	return fld
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"otp" validate:"required"`
	}

	ResetTicketResponse struct {
		ResetTicket string `json:"reset_ticket"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	UploadRequest struct {
		Kind     string `json:"kind" validate:"required,oneof=image video"`
		Filename string `json:"filename" validate:"required"`
	}

	PurchaseRequest struct {
		CourseID string `json:"course_id" validate:"required"`
	}

	PurchasedResponse struct {
		Purchased bool `json:"purchased"`
	}

	ProgressUpdateRequest struct {
		CourseID  string `json:"course_id" validate:"required"`
		SectionID string `json:"section_id" validate:"required"`
	}

	ThreadPostRequest struct {
		Body string `json:"body" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (vr *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.Code = core.CleanString(vr.Code)
	return validate.Struct(vr)
}

func (ur *UploadRequest) Validate(validate *validator.Validate) error {
	ur.Kind = core.CleanString(ur.Kind, true /* lower */)
	ur.Filename = core.CleanString(ur.Filename)
	return validate.Struct(ur)
}

func (pr *PurchaseRequest) Validate(validate *validator.Validate) error {
	pr.CourseID = core.CleanString(pr.CourseID)
	return validate.Struct(pr)
}

func (pu *ProgressUpdateRequest) Validate(validate *validator.Validate) error {
	pu.CourseID = core.CleanString(pu.CourseID)
	pu.SectionID = core.CleanString(pu.SectionID)
	return validate.Struct(pu)
}

func (tp *ThreadPostRequest) Validate(validate *validator.Validate) error {
	tp.Body = core.CleanString(tp.Body)
	return validate.Struct(tp)
}
