package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing auth token"}

type (
	httpErr struct {
		Error string `json:"error"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		wantCode int
		wantData []byte
		extra    interface{}
	}

	testEnv struct {
		server     Server
		conf       *core.Config
		usrRepo    user.Repository
		courseRepo course.Repository
		usrSvc     *user.Service
		enrollSvc  *enroll.Service
	}
)

// uploadServiceStub keeps object storage out of the tests.
type uploadServiceStub struct{}

func (uploadServiceStub) RequestUpload(_ context.Context, kind, filename string) (core.PendingUpload, error) {
	return core.PendingUpload{
		UploadURL: "https://storage.test/upload/" + kind + "/" + filename,
		PublicURL: "https://storage.test/media/" + kind + "/" + filename,
		ExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	}, nil
}

func newTestConfig() *core.Config {
	return &core.Config{
		TestMode:                   true,
		Env:                        "TEST",
		AppName:                    "Darasa",
		SecretKey:                  "secret",
		FrontendBaseURL:            "http://localhost:5173",
		FromEmail:                  "noreply@localhost",
		JWTExpirationDelta:         10 * time.Minute,
		OTPExpirationDelta:         10 * time.Minute,
		ResetTicketExpirationDelta: 15 * time.Minute,
	}
}

func setup(t *testing.T) *testEnv {
	conf := newTestConfig()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	usrRepo := dummydb.NewUserRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	usrSvc := user.NewService(usrRepo, dummydb.NewOTPRepository(db), mailSvc, logger, conf)
	courseSvc := course.NewService(courseRepo, dummydb.NewThreadRepository(db))
	enrollSvc := enroll.NewService(dummydb.NewEnrollRepository(db), courseRepo)

	srv := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		EnrollSvc:      enrollSvc,
		UploadSvc:      uploadServiceStub{},
		Validate:       validate,
		Translator:     translator,
		SignalShutdown: func() {},
	})
	return &testEnv{
		server:     srv,
		conf:       conf,
		usrRepo:    usrRepo,
		courseRepo: courseRepo,
		usrSvc:     usrSvc,
		enrollSvc:  enrollSvc,
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(authHeader, token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func createUser(t *testing.T, repo user.Repository, name, email, pwd string, roles []string, verified bool) user.User {
	now := time.Now().UTC()
	usr := user.User{
		Name:            name,
		Email:           email,
		Roles:           roles,
		IsEmailVerified: verified,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func createCourse(t *testing.T, repo course.Repository, title string, price float64, instructorEmail string, nSections int) course.Course {
	crs := course.Course{
		ID:              uuid.NewString(),
		Title:           title,
		Price:           price,
		InstructorEmail: instructorEmail,
		CreatedAt:       time.Now().UTC(),
	}
	for i := 0; i < nSections; i++ {
		crs.Sections = append(crs.Sections, course.Section{
			ID:       uuid.NewString(),
			Title:    "Section",
			VideoURL: "https://cdn.test/video.mp4",
			Position: i + 1,
		})
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
