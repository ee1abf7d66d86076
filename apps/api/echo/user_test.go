package echoapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"regexp"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
)

var (
	verifyTokenRegex = regexp.MustCompile(`token=([0-9a-f]{64})`)
	otpRegex         = regexp.MustCompile(`reset is (\d{6})`)
)

func lastSentMessage(t *testing.T) core.EmailMessage {
	if len(emailsvc.SentMessages) == 0 {
		t.Fatal("no email was sent")
	}
	return emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
}

func TestUserAPI_signupVerifyLogin(t *testing.T) {
	env := setup(t)

	signupBody := marchallObj(t, echo.Map{
		"name":             "Jo Stud",
		"email":            "jo@test.cd",
		"password":         "Str0ng!Pwd",
		"password_confirm": "Str0ng!Pwd",
	})
	loginBody := marchallObj(t, echo.Map{"email": "jo@test.cd", "password": "Str0ng!Pwd"})

	var verifyToken string
	t.Run("signup", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/signup", signupBody)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.Equal(t, "jo@test.cd", usr.Email)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.False(t, usr.IsEmailVerified)

		m := verifyTokenRegex.FindStringSubmatch(lastSentMessage(t).TextContent)
		if len(m) < 2 {
			t.Fatal("verification token not found in email")
		}
		verifyToken = m[1]
	})

	t.Run("signup duplicate email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/signup", signupBody)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"email": user.ErrEmailExists.Error()}),
		}, rec)
	})

	t.Run("login before verification", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/login", loginBody)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrEmailUnverified.Error()}),
		}, rec)
	})

	t.Run("verify-email bad token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/verify-email?token=nope")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidToken.Error()}),
		}, rec)
	})

	t.Run("verify-email", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/verify-email?token="+verifyToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("verify-email is single use", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/verify-email?token="+verifyToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidToken.Error()}),
		}, rec)
	})

	t.Run("login unknown email", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "who@test.cd", "password": "Str0ng!Pwd"})
		req, rec := newRequest(http.MethodPost, "/login", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		}, rec)
	})

	t.Run("login wrong password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "password": "Wr0ng!Pwd"})
		req, rec := newRequest(http.MethodPost, "/login", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		}, rec)
	})

	var token string
	t.Run("login", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/login", loginBody)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var res TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, res.Token, rec.Header().Get(authHeader))
		token = res.Token
	})

	t.Run("profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/profile", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.Equal(t, "jo@test.cd", usr.Email)
		assert.True(t, usr.IsEmailVerified)
		assert.False(t, usr.LastLogin.IsZero())
	})

	t.Run("profile without token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/profile")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("profile with garbage token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/profile", "lmaooolol")
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestUserAPI_passwordReset(t *testing.T) {
	env := setup(t)
	createUser(t, env.usrRepo, "Jo Stud", "jo@test.cd", "0ld!Passw", []string{user.RoleStudent}, true)

	t.Run("forgot-password unknown email", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "who@test.cd"})
		req, rec := newRequest(http.MethodPost, "/forgot-password", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		}, rec)
	})

	var code string
	t.Run("forgot-password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd"})
		req, rec := newRequest(http.MethodPost, "/forgot-password", body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		m := otpRegex.FindStringSubmatch(lastSentMessage(t).TextContent)
		if len(m) < 2 {
			t.Fatal("OTP not found in email")
		}
		code = m[1]
	})

	t.Run("verify-otp wrong code", func(t *testing.T) {
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "otp": wrong})
		req, rec := newRequest(http.MethodPost, "/verify-otp", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetCode.Error()}),
		}, rec)
	})

	var ticket string
	t.Run("verify-otp", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "otp": code})
		req, rec := newRequest(http.MethodPost, "/verify-otp", body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var res ResetTicketResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.NotEmpty(t, res.ResetTicket)
		ticket = res.ResetTicket
	})

	t.Run("verify-otp code is single use", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "otp": code})
		req, rec := newRequest(http.MethodPost, "/verify-otp", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetCode.Error()}),
		}, rec)
	})

	t.Run("update-password bad ticket", func(t *testing.T) {
		body := marchallObj(t, echo.Map{
			"email": "jo@test.cd", "reset_ticket": "lmaooolol",
			"password": "N3w!Passw", "password_confirm": "N3w!Passw",
		})
		req, rec := newRequest(http.MethodPost, "/update-password", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetTicket.Error()}),
		}, rec)
	})

	t.Run("update-password weak password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{
			"email": "jo@test.cd", "reset_ticket": ticket,
			"password": "short", "password_confirm": "short",
		})
		req, rec := newRequest(http.MethodPost, "/update-password", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"password": "password must contain at least 8 characters"}),
		}, rec)
	})

	t.Run("update-password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{
			"email": "jo@test.cd", "reset_ticket": ticket,
			"password": "N3w!Passw", "password_confirm": "N3w!Passw",
		})
		req, rec := newRequest(http.MethodPost, "/update-password", body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("login with old password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "password": "0ld!Passw"})
		req, rec := newRequest(http.MethodPost, "/login", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		}, rec)
	})

	t.Run("login with new password", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"email": "jo@test.cd", "password": "N3w!Passw"})
		req, rec := newRequest(http.MethodPost, "/login", body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	t.Run("update-password ticket is single use", func(t *testing.T) {
		// the reset changed the hash the ticket was signed over
		body := marchallObj(t, echo.Map{
			"email": "jo@test.cd", "reset_ticket": ticket,
			"password": "An0ther!1", "password_confirm": "An0ther!1",
		})
		req, rec := newRequest(http.MethodPost, "/update-password", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidResetTicket.Error()}),
		}, rec)
	})
}

func TestAPI_strictRequestBodies(t *testing.T) {
	env := setup(t)

	t.Run("unknown field", func(t *testing.T) {
		body := marchallObj(t, echo.Map{
			"name":              "Jo Stud",
			"email":             "jo@test.cd",
			"password":          "Str0ng!Pwd",
			"password_confirm":  "Str0ng!Pwd",
			"is_email_verified": true,
		})
		req, rec := newRequest(http.MethodPost, "/signup", body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"is_email_verified": "unknown field"}),
		}, rec)

		// nothing was persisted
		if _, err := env.usrRepo.GetUserByEmail(context.Background(), "jo@test.cd"); errors.Cause(err) != user.ErrNotFound {
			t.Errorf("GetUserByEmail() error = %v, wantErr %v", err, user.ErrNotFound)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/login", []byte(`{"email": "jo@test.cd"`))
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "malformed request body"}),
		}, rec)
	})
}

// failingEmailService simulates an unavailable delivery provider.
type failingEmailService struct{}

func (failingEmailService) SendMessage(*core.EmailMessage) error {
	return errors.New("provider down")
}

func TestUserAPI_signupEmailFailure(t *testing.T) {
	conf := newTestConfig()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	usrRepo := dummydb.NewUserRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	usrSvc := user.NewService(usrRepo, dummydb.NewOTPRepository(db), failingEmailService{}, logger, conf)

	srv := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		CourseSvc:      course.NewService(courseRepo, dummydb.NewThreadRepository(db)),
		EnrollSvc:      enroll.NewService(dummydb.NewEnrollRepository(db), courseRepo),
		UploadSvc:      uploadServiceStub{},
		Validate:       validate,
		Translator:     translator,
		SignalShutdown: func() {},
	})

	body := marchallObj(t, echo.Map{
		"name":             "Jo Stud",
		"email":            "jo@test.cd",
		"password":         "Str0ng!Pwd",
		"password_confirm": "Str0ng!Pwd",
	})
	req, rec := newRequest(http.MethodPost, "/signup", body)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadGateway,
		wantData: marchallObj(t, httpErr{Error: core.ErrUpstreamDependency.Error()}),
	}, rec)

	// the account was persisted regardless
	if _, err := usrRepo.GetUserByEmail(context.Background(), "jo@test.cd"); err != nil {
		t.Errorf("GetUserByEmail() failed: %v", err)
	}
}
