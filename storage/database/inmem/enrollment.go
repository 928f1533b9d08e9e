package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.enrollments {
		if existing.UserID == enr.UserID && existing.CourseID == enr.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}

	enr.ID = uuid.New().String()
	if enr.CompletedLessons == nil {
		enr.CompletedLessons = enrollment.NewLessonSet()
	}
	repo.db.enrollments[enr.ID] = &enr

	// counter moves with the membership row, under the same lock
	if crs, ok := repo.db.courses[enr.CourseID]; ok {
		crs.EnrolledStudents++
	}
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollmentByID(ctx context.Context, id string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return clone(*enr), nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return clone(*enr), nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollmentsByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	return repo.query(func(enr enrollment.Enrollment) bool { return enr.UserID == userID })
}

func (repo *enrollmentRepository) QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]enrollment.Enrollment, error) {
	return repo.query(func(enr enrollment.Enrollment) bool { return enr.CourseID == courseID })
}

func (repo *enrollmentRepository) query(match func(enrollment.Enrollment) bool) ([]enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []enrollment.Enrollment
	for _, enr := range repo.db.enrollments {
		if match(*enr) {
			enrs = append(enrs, clone(*enr))
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origEnr, ok := repo.db.enrollments[enr.ID]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	origEnr.Progress = enr.Progress
	origEnr.CompletedLessons = enr.CompletedLessons.Clone()
	if !enr.LastAccessedAt.IsZero() {
		origEnr.LastAccessedAt = enr.LastAccessedAt
	}
	return clone(*origEnr), nil
}

// clone copies the completed set so callers cannot mutate stored state.
func clone(enr enrollment.Enrollment) enrollment.Enrollment {
	enr.CompletedLessons = enr.CompletedLessons.Clone()
	return enr
}
