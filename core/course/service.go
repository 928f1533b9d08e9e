package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrNotPublished   = errors.New("course not published")
	ErrLessonNotFound = errors.New("lesson not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Course.Title,
		// Course.Description or Course.InstructorName.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, isPublished *bool) (Course, error)
		GetInstructorStats(ctx context.Context, instructorID string) (InstructorStats, error)
		// DeleteCoursesByID cascades to the courses' lessons and enrollments.
		DeleteCoursesByID(ctx context.Context, ids ...string) error

		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		// QueryLessonsByCourse returns the course's lessons ordered by Lesson.Order ascending.
		QueryLessonsByCourse(ctx context.Context, courseID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson, isPreview *bool) (Lesson, error)
		// DeleteLessonAndReindex removes a lesson and closes the resulting gap in
		// its course's Order sequence.
		DeleteLessonAndReindex(ctx context.Context, lsn Lesson) error
		// ReorderLessons reassigns Order 1..n following orderedIDs.
		ReorderLessons(ctx context.Context, courseID string, orderedIDs []string) ([]Lesson, error)
	}

	Service interface {
		Create(ctx context.Context, prin user.Principal, instructorName string, nc NewCourse) (Course, error)
		Get(ctx context.Context, prin user.Principal, id string) (Course, error)
		Query(ctx context.Context, prin user.Principal, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, prin user.Principal, id string, uc UpdateCourse) (Course, error)
		SetPublished(ctx context.Context, prin user.Principal, id string, published bool) (Course, error)
		Stats(ctx context.Context, prin user.Principal, instructorID string) (InstructorStats, error)
		Delete(ctx context.Context, prin user.Principal, ids ...string) error

		AddLesson(ctx context.Context, prin user.Principal, courseID string, nl NewLesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, courseID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, prin user.Principal, id string, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, prin user.Principal, id string) error
		ReorderLessons(ctx context.Context, prin user.Principal, courseID string, orderedIDs []string) ([]Lesson, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// getOwned fetches a course and checks that prin may modify it:
// its owning instructor, or an admin.
func (svc *service) getOwned(ctx context.Context, prin user.Principal, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !(prin.IsAdmin() || (prin.IsInstructor() && crs.IsOwnedBy(prin.ID))) {
		return Course{}, core.ErrPermissionDenied
	}
	return crs, nil
}

func (svc *service) Create(ctx context.Context, prin user.Principal, instructorName string, nc NewCourse) (Course, error) {
	if !(prin.IsInstructor() || prin.IsAdmin()) {
		return Course{}, core.ErrPermissionDenied
	}

	now := time.Now().UTC()
	crs := Course{
		Title:            nc.Title,
		Description:      nc.Description,
		Category:         nc.Category,
		Level:            nc.Level,
		InstructorID:     prin.ID,
		InstructorName:   instructorName,
		Price:            nc.Price,
		LearningOutcomes: nc.LearningOutcomes,
		Requirements:     nc.Requirements,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) Get(ctx context.Context, prin user.Principal, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	// drafts are invisible to everyone but their owner and admins
	if !crs.IsPublished && !(prin.IsAdmin() || crs.IsOwnedBy(prin.ID)) {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) Query(ctx context.Context, prin user.Principal, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	// catalog scoping: students and anonymous principals only see published
	// courses; instructors additionally see their own drafts; admins see all.
	if !prin.IsAdmin() {
		if prin.IsInstructor() {
			if filter.InstructorID != prin.ID {
				published := true
				filter.IsPublished = &published
			}
		} else {
			published := true
			filter.IsPublished = &published
			filter.InstructorID = ""
		}
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, prin user.Principal, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.getOwned(ctx, prin, id)
	if err != nil {
		return Course{}, err
	}
	// ratings come from an external feedback pipeline; only admins may
	// reconcile the stored value
	if uc.Rating != nil && !prin.IsAdmin() {
		return Course{}, core.ErrPermissionDenied
	}

	upd := Course{
		ID:               crs.ID,
		Title:            uc.Title,
		Description:      uc.Description,
		Category:         uc.Category,
		Level:            uc.Level,
		LearningOutcomes: uc.LearningOutcomes,
		Requirements:     uc.Requirements,
		UpdatedAt:        time.Now().UTC(),
	}
	if uc.Price != nil {
		upd.Price = *uc.Price
	} else {
		upd.Price = crs.Price
	}
	if uc.Rating != nil {
		upd.Rating = *uc.Rating
	} else {
		upd.Rating = crs.Rating
	}
	return svc.repo.UpdateCourse(ctx, upd, nil)
}

func (svc *service) SetPublished(ctx context.Context, prin user.Principal, id string, published bool) (Course, error) {
	crs, err := svc.getOwned(ctx, prin, id)
	if err != nil {
		return Course{}, err
	}
	return svc.repo.UpdateCourse(ctx, Course{ID: crs.ID, UpdatedAt: time.Now().UTC()}, &published)
}

// Stats returns dashboard aggregates for an instructor's catalog.
// Instructors may only view their own; admins may view anyone's.
func (svc *service) Stats(ctx context.Context, prin user.Principal, instructorID string) (InstructorStats, error) {
	if instructorID == "" {
		instructorID = prin.ID
	}
	if !(prin.IsAdmin() || (prin.IsInstructor() && instructorID == prin.ID)) {
		return InstructorStats{}, core.ErrPermissionDenied
	}
	return svc.repo.GetInstructorStats(ctx, instructorID)
}

func (svc *service) Delete(ctx context.Context, prin user.Principal, ids ...string) error {
	if !prin.IsAdmin() {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}

func (svc *service) AddLesson(ctx context.Context, prin user.Principal, courseID string, nl NewLesson) (Lesson, error) {
	if _, err := svc.getOwned(ctx, prin, courseID); err != nil {
		return Lesson{}, err
	}
	lessons, err := svc.repo.QueryLessonsByCourse(ctx, courseID)
	if err != nil {
		return Lesson{}, errors.Wrap(err, "querying lessons")
	}

	now := time.Now().UTC()
	lsn := Lesson{
		CourseID:    courseID,
		Title:       nl.Title,
		Description: nl.Description,
		Content:     nl.Content,
		VideoURL:    nl.VideoURL,
		Duration:    nl.Duration,
		Order:       len(lessons) + 1,
		IsPreview:   nl.IsPreview,
		Attachments: nl.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateLesson(ctx, lsn)
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

func (svc *service) QueryLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryLessonsByCourse(ctx, courseID)
}

func (svc *service) UpdateLesson(ctx context.Context, prin user.Principal, id string, ul UpdateLesson) (Lesson, error) {
	lsn, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if _, err = svc.getOwned(ctx, prin, lsn.CourseID); err != nil {
		return Lesson{}, err
	}

	upd := Lesson{
		ID:          lsn.ID,
		Title:       ul.Title,
		Description: ul.Description,
		Content:     ul.Content,
		VideoURL:    ul.VideoURL,
		Attachments: ul.Attachments,
		UpdatedAt:   time.Now().UTC(),
	}
	if ul.Duration != nil {
		upd.Duration = *ul.Duration
	} else {
		upd.Duration = lsn.Duration
	}
	return svc.repo.UpdateLesson(ctx, upd, ul.IsPreview)
}

func (svc *service) DeleteLesson(ctx context.Context, prin user.Principal, id string) error {
	lsn, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.getOwned(ctx, prin, lsn.CourseID); err != nil {
		return err
	}
	return svc.repo.DeleteLessonAndReindex(ctx, lsn)
}

func (svc *service) ReorderLessons(ctx context.Context, prin user.Principal, courseID string, orderedIDs []string) ([]Lesson, error) {
	if _, err := svc.getOwned(ctx, prin, courseID); err != nil {
		return nil, err
	}
	lessons, err := svc.repo.QueryLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	if len(orderedIDs) != len(lessons) {
		return nil, core.NewValidationError(errors.New("ordered ids must list every lesson of the course exactly once"))
	}
	known := make(map[string]bool, len(lessons))
	for _, lsn := range lessons {
		known[lsn.ID] = true
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !known[id] {
			return nil, ErrLessonNotFound
		}
		if seen[id] {
			return nil, core.NewValidationError(errors.Errorf("lesson %s listed more than once", id))
		}
		seen[id] = true
	}
	return svc.repo.ReorderLessons(ctx, courseID, orderedIDs)
}
