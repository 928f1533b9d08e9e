package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrLessonLocked    = errors.New("lesson is locked; complete the previous lesson first")
)

type (
	Repository interface {
		// CreateEnrollment persists enr and increments the course's enrolled
		// student counter in the same transaction. A second enrollment for the
		// same (user, course) pair fails with ErrAlreadyEnrolled.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id string) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		QueryEnrollmentsByUser(ctx context.Context, userID string) ([]Enrollment, error)
		QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	}

	Service interface {
		Enroll(ctx context.Context, prin user.Principal, courseID string) (Enrollment, error)
		Get(ctx context.Context, prin user.Principal, userID, courseID string) (Enrollment, error)
		QueryByUser(ctx context.Context, prin user.Principal, userID string) ([]Enrollment, error)
		QueryByCourse(ctx context.Context, prin user.Principal, courseID string) ([]Enrollment, error)
		MarkLessonComplete(ctx context.Context, prin user.Principal, courseID, lessonID string) (Enrollment, error)
		// AccessibleLessons resolves the viewer's entitlement to each lesson of
		// the course, in order. Inaccessible lessons come back redacted.
		AccessibleLessons(ctx context.Context, prin user.Principal, courseID string) ([]LessonAccess, error)
		// OpenLesson fetches a single lesson with its content, enforcing the
		// sequential access gate.
		OpenLesson(ctx context.Context, prin user.Principal, lessonID string) (course.Lesson, error)
	}

	service struct {
		repo       Repository
		courseRepo course.Repository
		usrRepo    user.Repository
		mailSvc    core.EmailService
		conf       *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseRepo course.Repository, usrRepo user.Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:       repo,
		courseRepo: courseRepo,
		usrRepo:    usrRepo,
		mailSvc:    mailSvc,
		conf:       conf,
	}
}

func (svc *service) Enroll(ctx context.Context, prin user.Principal, courseID string) (Enrollment, error) {
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsPublished {
		return Enrollment{}, course.ErrNotPublished
	}
	if _, err = svc.repo.GetEnrollment(ctx, prin.ID, courseID); err == nil {
		return Enrollment{}, ErrAlreadyEnrolled
	} else if errors.Cause(err) != ErrNotFound {
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr := Enrollment{
		UserID:           prin.ID,
		CourseID:         courseID,
		CompletedLessons: NewLessonSet(),
		EnrolledAt:       now,
		LastAccessedAt:   now,
	}
	enr, err = svc.repo.CreateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.sendEnrollmentMail(ctx, prin, crs)
	return enr, nil
}

func (svc *service) Get(ctx context.Context, prin user.Principal, userID, courseID string) (Enrollment, error) {
	if userID != prin.ID && !prin.IsAdmin() {
		return Enrollment{}, core.ErrPermissionDenied
	}
	return svc.repo.GetEnrollment(ctx, userID, courseID)
}

func (svc *service) QueryByUser(ctx context.Context, prin user.Principal, userID string) ([]Enrollment, error) {
	if userID != prin.ID && !prin.IsAdmin() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryEnrollmentsByUser(ctx, userID)
}

func (svc *service) QueryByCourse(ctx context.Context, prin user.Principal, courseID string) ([]Enrollment, error) {
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !(prin.IsAdmin() || (prin.IsInstructor() && crs.IsOwnedBy(prin.ID))) {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryEnrollmentsByCourse(ctx, courseID)
}

func (svc *service) MarkLessonComplete(ctx context.Context, prin user.Principal, courseID, lessonID string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, prin.ID, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	lessons, err := svc.courseRepo.QueryLessonsByCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "querying lessons")
	}
	course.SortLessons(lessons)

	idx := -1
	for i, lsn := range lessons {
		if lsn.ID == lessonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Enrollment{}, course.ErrLessonNotFound
	}
	if !canAccess(lessons, idx, enr.CompletedLessons) {
		return Enrollment{}, ErrLessonLocked
	}

	enr.LastAccessedAt = time.Now().UTC()
	enr.CompletedLessons.Add(lessonID)
	// recompute even on a re-mark: the lesson list may have changed since
	// the stored Progress was derived
	lessonIDs := make([]string, len(lessons))
	for i, lsn := range lessons {
		lessonIDs[i] = lsn.ID
	}
	enr.Progress = ComputeProgress(enr.CompletedLessons, lessonIDs)
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) AccessibleLessons(ctx context.Context, prin user.Principal, courseID string) ([]LessonAccess, error) {
	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := svc.courseRepo.QueryLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}

	completed, err := svc.viewerCompletedSet(ctx, prin, crs)
	if err != nil {
		return nil, err
	}
	return resolveAccess(lessons, completed), nil
}

func (svc *service) OpenLesson(ctx context.Context, prin user.Principal, lessonID string) (course.Lesson, error) {
	lsn, err := svc.courseRepo.GetLessonByID(ctx, lessonID)
	if err != nil {
		return course.Lesson{}, err
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, lsn.CourseID)
	if err != nil {
		return course.Lesson{}, err
	}
	lessons, err := svc.courseRepo.QueryLessonsByCourse(ctx, lsn.CourseID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "querying lessons")
	}

	completed, err := svc.viewerCompletedSet(ctx, prin, crs)
	if err != nil {
		return course.Lesson{}, err
	}
	if completed == nil && !lsn.IsPreview {
		return course.Lesson{}, ErrLessonLocked
	}
	if completed != nil {
		course.SortLessons(lessons)
		for i := range lessons {
			if lessons[i].ID == lsn.ID {
				if !canAccess(lessons, i, completed) {
					return course.Lesson{}, ErrLessonLocked
				}
				break
			}
		}
	}
	return lsn, nil
}

// viewerCompletedSet resolves what gate applies to prin viewing crs:
// a nil set restricts to previews; owners and admins get an all-complete
// set; enrolled students get their own, even after the course was
// unpublished. Everyone else gets course.ErrNotFound for a draft.
func (svc *service) viewerCompletedSet(ctx context.Context, prin user.Principal, crs course.Course) (LessonSet, error) {
	if prin.IsAdmin() || crs.IsOwnedBy(prin.ID) {
		lessons, err := svc.courseRepo.QueryLessonsByCourse(ctx, crs.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying lessons")
		}
		all := NewLessonSet()
		for _, lsn := range lessons {
			all.Add(lsn.ID)
		}
		return all, nil
	}
	enr, err := svc.repo.GetEnrollment(ctx, prin.ID, crs.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			// drafts are invisible to anyone without an enrollment, as if
			// the course did not exist
			if !crs.IsPublished {
				return nil, course.ErrNotFound
			}
			return nil, nil
		}
		return nil, err
	}
	return enr.CompletedLessons, nil
}

func (svc *service) sendEnrollmentMail(ctx context.Context, prin user.Principal, crs course.Course) {
	// best effort; enrolling succeeds even if the lookup fails
	usr, err := svc.usrRepo.GetUserByID(ctx, prin.ID)
	if err != nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You're enrolled in " + crs.Title,
		TemplateName: "enrollment",
		TemplateData: struct {
			User   user.User
			Course course.Course
		}{usr, crs},
	}
	svc.mailSvc.SendMessages(msg)
}
