package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
	"github.com/darasahq/darasa/core/user"
)

func TestCourseAPI_browse(t *testing.T) {
	env := setup(t)
	crs := createCourse(t, env.courseRepo, "Go Basics", 25, "teach@test.cd", 3)

	t.Run("list", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses")
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if assert.Len(t, courses, 1) {
			assert.Equal(t, crs.ID, courses[0].ID)
			assert.Len(t, courses[0].Sections, 3)
		}
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses/"+crs.ID)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var got course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.Equal(t, crs.Title, got.Title)
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses/unknown")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		}, rec)
	})
}

func TestCourseAPI_create(t *testing.T) {
	env := setup(t)
	student := createUser(t, env.usrRepo, "Jo Stud", "jo@test.cd", "", []string{user.RoleStudent}, true)
	instructor := createUser(t, env.usrRepo, "T Richie", "teach@test.cd", "", []string{user.RoleInstructor}, true)
	studentToken := getToken(t, student)
	instructorToken := getToken(t, instructor)

	body := marchallObj(t, course.NewCourse{
		Title:        "Go Basics",
		Price:        25,
		Description:  "An introduction to Go.",
		ImageURL:     "https://cdn.test/cover.png",
		Requirements: []string{"A laptop", "  "},
		Sections: []course.NewSection{
			{Title: "Hello", Description: "First steps", VideoURL: "https://cdn.test/1.mp4"},
			{Title: "Types", Description: "Basic types", VideoURL: "https://cdn.test/2.mp4"},
		},
	})

	t.Run("student is refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/create-course", studentToken, body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("missing sections", func(t *testing.T) {
		noSections := marchallObj(t, course.NewCourse{
			Title:       "Go Basics",
			Description: "An introduction to Go.",
			ImageURL:    "https://cdn.test/cover.png",
		})
		req, rec := newAuthRequest(http.MethodPost, "/create-course", instructorToken, noSections)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"sections": "this field is required"}),
		}, rec)
	})

	var created course.Course
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/create-course", instructorToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, instructor.Email, created.InstructorEmail)
		assert.Equal(t, []string{"A laptop"}, created.Requirements) // blank rows dropped
		if assert.Len(t, created.Sections, 2) {
			assert.NotEmpty(t, created.Sections[0].ID)
			assert.Equal(t, 1, created.Sections[0].Position)
			assert.Equal(t, 2, created.Sections[1].Position)
		}
	})

	t.Run("instructor-dashboard courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/instructor-dashboard/courses", instructorToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if assert.Len(t, courses, 1) {
			assert.Equal(t, created.ID, courses[0].ID)
		}
	})

	t.Run("instructor-dashboard earnings", func(t *testing.T) {
		if err := env.enrollSvc.Purchase(context.Background(), student.ID, created.ID); err != nil {
			t.Fatalf("Purchase() failed: %v", err)
		}

		req, rec := newAuthRequest(http.MethodGet, "/instructor-dashboard/earnings", instructorToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var earnings []enroll.CourseEarnings
		if err := json.Unmarshal(rec.Body.Bytes(), &earnings); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if assert.Len(t, earnings, 1) {
			assert.Equal(t, 1, earnings[0].Purchases)
			assert.Equal(t, 25.0, earnings[0].Earnings)
		}
	})

	t.Run("instructor-dashboard as student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/instructor-dashboard/earnings", studentToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})
}

func TestCourseAPI_uploads(t *testing.T) {
	env := setup(t)
	student := createUser(t, env.usrRepo, "Jo Stud", "jo@test.cd", "", []string{user.RoleStudent}, true)
	instructor := createUser(t, env.usrRepo, "T Richie", "teach@test.cd", "", []string{user.RoleInstructor}, true)

	body := marchallObj(t, UploadRequest{Kind: "video", Filename: "lesson.mp4"})

	t.Run("student is refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/uploads", getToken(t, student), body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("bad kind", func(t *testing.T) {
		badKind := marchallObj(t, UploadRequest{Kind: "pdf", Filename: "lesson.pdf"})
		req, rec := newAuthRequest(http.MethodPost, "/uploads", getToken(t, instructor), badKind)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("upload", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/uploads", getToken(t, instructor), body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var pending core.PendingUpload
		if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		assert.NotEmpty(t, pending.UploadURL)
		assert.NotEmpty(t, pending.PublicURL)
	})
}

func TestCourseAPI_thread(t *testing.T) {
	env := setup(t)
	student := createUser(t, env.usrRepo, "Jo Stud", "jo@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)
	crs := createCourse(t, env.courseRepo, "Go Basics", 25, "teach@test.cd", 2)

	t.Run("thread requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses/"+crs.ID+"/thread")
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	})

	t.Run("thread of unknown course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/courses/unknown/thread", token)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		}, rec)
	})

	t.Run("empty thread", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/courses/"+crs.ID+"/thread", token)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, course.Thread{CourseID: crs.ID, Messages: []course.Message{}}),
		}, rec)
	})

	t.Run("post and read back", func(t *testing.T) {
		bodies := []string{"Anyone stuck on section 2?", "Me. The video cuts off."}
		for _, msgBody := range bodies {
			body := marchallObj(t, ThreadPostRequest{Body: msgBody})
			req, rec := newAuthRequest(http.MethodPost, "/courses/"+crs.ID+"/thread", token, body)
			env.server.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
			}
		}

		req, rec := newAuthRequest(http.MethodGet, "/courses/"+crs.ID+"/thread", token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var thread course.Thread
		if err := json.Unmarshal(rec.Body.Bytes(), &thread); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if assert.Len(t, thread.Messages, 2) {
			assert.Equal(t, bodies[0], thread.Messages[0].Body)
			assert.Equal(t, bodies[1], thread.Messages[1].Body)
			assert.Equal(t, student.Name, thread.Messages[0].AuthorName)
			assert.NotZero(t, thread.Messages[0].ID)
		}
	})
}
