package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/enrollment"
	"github.com/eduflow/eduflow/core/user"
	emailsvc "github.com/eduflow/eduflow/services/email"
	testutil "github.com/eduflow/eduflow/tests"
)

// seedCourse creates a published three lesson course; only the first lesson
// is a free preview.
func seedCourse(t *testing.T, instructor user.User) (course.Course, []course.Lesson) {
	t.Helper()
	crs := testutil.CreateCourse(t, courseRepo, "Go Basics", instructor, true)
	lessons := []course.Lesson{
		testutil.CreateLesson(t, courseRepo, crs, "Intro", 1, true),
		testutil.CreateLesson(t, courseRepo, crs, "Syntax", 2, false),
		testutil.CreateLesson(t, courseRepo, crs, "Types", 3, false),
	}
	return crs, lessons
}

func Test_enrollmentApi_enroll(t *testing.T) {
	resetDB(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	crs, _ := seedCourse(t, instructor)
	draft := testutil.CreateCourse(t, courseRepo, "Go Internals", instructor, false)

	token := getToken(t, student)

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("cannot enroll in a draft", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+draft.ID+"/enroll", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "course not published"})}, rec)
	})

	t.Run("enroll ok", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var enr enrollment.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if enr.UserID != student.ID || enr.CourseID != crs.ID {
			t.Errorf("enrollment = %+v", enr)
		}
		if enr.Progress != 0 {
			t.Errorf("Progress = %d; want 0", enr.Progress)
		}

		refreshed, err := courseRepo.GetCourseByID(req.Context(), crs.ID)
		if err != nil {
			t.Fatalf("GetCourseByID(): %v", err)
		}
		if refreshed.EnrolledStudents != crs.EnrolledStudents+1 {
			t.Errorf("EnrolledStudents = %d; want %d", refreshed.EnrolledStudents, crs.EnrolledStudents+1)
		}

		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
		}
		msg := emailsvc.SentMessages[0]
		if !strings.Contains(msg.TextContent, crs.Title) {
			t.Errorf("mail does not mention the course title %q", crs.Title)
		}
	})

	t.Run("cannot enroll twice", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/enroll", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"})}, rec)
	})
}

func Test_enrollmentApi_lessonListing(t *testing.T) {
	resetDB(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	crs, lessons := seedCourse(t, instructor)
	testutil.CreateEnrollment(t, enrRepo, student, crs, lessons[0].ID)

	path := "/v1/courses/" + crs.ID + "/lessons"

	fetch := func(t *testing.T, token string) []enrollment.LessonAccess {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var got []enrollment.LessonAccess
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(got) != len(lessons) {
			t.Fatalf("len = %d; want %d", len(got), len(lessons))
		}
		return got
	}

	t.Run("anonymous gets previews only, rest redacted", func(t *testing.T) {
		got := fetch(t, "")
		if !got[0].Accessible || got[0].Lesson.Content == "" {
			t.Errorf("preview lesson should be accessible with content; got %+v", got[0])
		}
		for _, la := range got[1:] {
			if la.Accessible {
				t.Errorf("lesson %q should not be accessible", la.Lesson.Title)
			}
			if la.Lesson.Content != "" {
				t.Errorf("lesson %q content should be redacted", la.Lesson.Title)
			}
		}
	})

	t.Run("enrolled student unlocks sequentially", func(t *testing.T) {
		got := fetch(t, getToken(t, student))
		if !got[0].Completed {
			t.Error("first lesson should be completed")
		}
		if !got[1].Accessible || got[1].Lesson.Content == "" {
			t.Error("second lesson should be accessible once the first is done")
		}
		if got[2].Accessible {
			t.Error("third lesson should still be locked")
		}
	})

	t.Run("owner sees everything", func(t *testing.T) {
		got := fetch(t, getToken(t, instructor))
		for _, la := range got {
			if !la.Accessible || la.Lesson.Content == "" {
				t.Errorf("lesson %q should be fully accessible to the owner", la.Lesson.Title)
			}
		}
	})

	t.Run("draft lessons hidden like the course itself", func(t *testing.T) {
		draft := testutil.CreateCourse(t, courseRepo, "Go Internals", instructor, false)
		testutil.CreateLesson(t, courseRepo, draft, "Secret", 1, true)
		draftPath := "/v1/courses/" + draft.ID + "/lessons"
		wantData := marchallObj(t, httpErr{Error: "course not found"})

		req, rec := newAuthRequest(http.MethodGet, draftPath, "")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: wantData}, rec)

		req, rec = newAuthRequest(http.MethodGet, draftPath, getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: wantData}, rec)
	})
}

func Test_enrollmentApi_openLesson(t *testing.T) {
	resetDB(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	crs, lessons := seedCourse(t, instructor)
	testutil.CreateEnrollment(t, enrRepo, student, crs)

	lockedData := marchallObj(t, httpErr{Error: "lesson is locked; complete the previous lesson first"})

	tests := []httpTest{
		{name: "anonymous opens a preview", path: "/v1/lessons/" + lessons[0].ID, wantCode: http.StatusOK, wantData: marchallObj(t, lessons[0])},
		{name: "anonymous cannot open the rest", path: "/v1/lessons/" + lessons[1].ID, wantCode: http.StatusForbidden, wantData: lockedData},
		{
			name: "enrolled student opens the next lesson", path: "/v1/lessons/" + lessons[1].ID,
			token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, lessons[1]),
		},
		{
			name: "later lessons stay locked", path: "/v1/lessons/" + lessons[2].ID,
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: lockedData,
		},
		{
			name: "owner opens any lesson", path: "/v1/lessons/" + lessons[2].ID,
			token: getToken(t, instructor), wantCode: http.StatusOK, wantData: marchallObj(t, lessons[2]),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_enrollmentApi_completeLesson(t *testing.T) {
	resetDB(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	outsider := testutil.CreateUser(t, usrRepo, "Außenseiter", "out@test.cd", "", user.RoleStudent, true)
	crs, lessons := seedCourse(t, instructor)
	testutil.CreateEnrollment(t, enrRepo, student, crs)

	token := getToken(t, student)
	path := func(lessonID string) string {
		return "/v1/courses/" + crs.ID + "/lessons/" + lessonID + "/complete"
	}

	complete := func(t *testing.T, lessonID string) enrollment.Enrollment {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, path(lessonID), token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var enr enrollment.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		return enr
	}

	t.Run("not enrolled", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(lessons[0].ID), getToken(t, outsider))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "enrollment not found"})}, rec)
	})

	t.Run("skipping ahead is locked", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(lessons[2].ID), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "lesson is locked; complete the previous lesson first"}),
		}, rec)
	})

	t.Run("progress moves in order", func(t *testing.T) {
		if enr := complete(t, lessons[0].ID); enr.Progress != 33 {
			t.Errorf("Progress = %d; want 33", enr.Progress)
		}
		if enr := complete(t, lessons[1].ID); enr.Progress != 67 {
			t.Errorf("Progress = %d; want 67", enr.Progress)
		}
		if enr := complete(t, lessons[2].ID); enr.Progress != 100 {
			t.Errorf("Progress = %d; want 100", enr.Progress)
		}
	})

	t.Run("completing again is a no-op", func(t *testing.T) {
		if enr := complete(t, lessons[1].ID); enr.Progress != 100 {
			t.Errorf("Progress = %d; want 100", enr.Progress)
		}
	})

	t.Run("unknown lesson", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path("nope"), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "lesson not found"})}, rec)
	})
}

func Test_enrollmentApi_queries(t *testing.T) {
	resetDB(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", user.RoleInstructor, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival@test.cd", "", user.RoleInstructor, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", user.RoleStudent, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true)

	crs, _ := seedCourse(t, instructor)
	other := testutil.CreateCourse(t, courseRepo, "Go Advanced", instructor, true)

	enr1 := testutil.CreateEnrollment(t, enrRepo, student, crs)
	enr2 := testutil.CreateEnrollment(t, enrRepo, student, other)

	t.Run("own enrollments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/me/enrollments", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, enr1, enr2)}, rec)
	})

	t.Run("own enrollment detail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/me/enrollments/"+crs.ID, getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, enr1)}, rec)
	})

	t.Run("course roster for owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/enrollments", getToken(t, instructor))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, enr1)}, rec)
	})

	t.Run("course roster for admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/enrollments", getToken(t, admin))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, enr1)}, rec)
	})

	t.Run("course roster denied to non-owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/enrollments", getToken(t, rival))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("course roster denied to students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/enrollments", getToken(t, student))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})
}
