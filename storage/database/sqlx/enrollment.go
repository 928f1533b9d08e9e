package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eduflow/eduflow/core/enrollment"
)

const enrollmentTable = "enrollment"

// uniqueViolation is the postgres error code raised by the unique index
// on (user_id, course_id).
const uniqueViolation = "23505"

var enrollmentColumns = []string{
	"id", "user_id", "course_id", "progress", "completed_lessons",
	"enrolled_at", "last_accessed_at",
}

type dbEnrollment struct {
	ID               string         `db:"id"`
	UserID           null.String    `db:"user_id"`
	CourseID         null.String    `db:"course_id"`
	Progress         null.Int       `db:"progress"`
	CompletedLessons pq.StringArray `db:"completed_lessons"`
	EnrolledAt       null.Time      `db:"enrolled_at"`
	LastAccessedAt   null.Time      `db:"last_accessed_at"`
}

func marshalEnrollment(enr enrollment.Enrollment) dbEnrollment {
	return dbEnrollment{
		ID:               enr.ID,
		UserID:           null.NewString(enr.UserID, enr.UserID != ""),
		CourseID:         null.NewString(enr.CourseID, enr.CourseID != ""),
		Progress:         null.IntFrom(enr.Progress),
		CompletedLessons: enr.CompletedLessons.List(),
		EnrolledAt:       null.NewTime(enr.EnrolledAt.UTC(), !enr.EnrolledAt.IsZero()),
		LastAccessedAt:   null.NewTime(enr.LastAccessedAt.UTC(), !enr.LastAccessedAt.IsZero()),
	}
}

func (e dbEnrollment) unmarshal() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:               e.ID,
		UserID:           e.UserID.String,
		CourseID:         e.CourseID.String,
		Progress:         e.Progress.Int,
		CompletedLessons: enrollment.NewLessonSet(e.CompletedLessons...),
		EnrolledAt:       e.EnrolledAt.Time,
		LastAccessedAt:   e.LastAccessedAt.Time,
	}
}

func (e dbEnrollment) values() []interface{} {
	return []interface{}{
		e.ID, e.UserID, e.CourseID, e.Progress, e.CompletedLessons,
		e.EnrolledAt, e.LastAccessedAt,
	}
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return enrollment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	e := marshalEnrollment(enr)

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert(enrollmentTable).Columns(enrollmentColumns...).Values(e.values()...).ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}

	// counter moves with the membership row, in the same tx
	query, args, err = psql.Update(courseTable).
		Set("enrolled_students", sq.Expr("enrolled_students + 1")).
		Where(sq.Eq{"id": enr.CourseID}).
		ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "incrementing enrolled students")
	}

	if err = tx.Commit(); err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "committing tx")
	}
	return enr, nil
}

func (repo enrollmentRepository) GetEnrollmentByID(ctx context.Context, id string) (enrollment.Enrollment, error) {
	return repo.getEnrollment(ctx, sq.Eq{"id": id})
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, userID, courseID string) (enrollment.Enrollment, error) {
	return repo.getEnrollment(ctx, sq.Eq{"user_id": userID, "course_id": courseID})
}

func (repo enrollmentRepository) getEnrollment(ctx context.Context, pred interface{}) (enrollment.Enrollment, error) {
	query, args, err := psql.Select(enrollmentColumns...).From(enrollmentTable).Where(pred).ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}

	var e dbEnrollment
	if err = repo.db.GetContext(ctx, &e, query, args...); err != nil {
		return enrollment.Enrollment{}, repo.trapNoRowsErr(err, "getting enrollment")
	}
	return e.unmarshal(), nil
}

func (repo enrollmentRepository) QueryEnrollmentsByUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error) {
	return repo.queryEnrollments(ctx, sq.Eq{"user_id": userID})
}

func (repo enrollmentRepository) QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]enrollment.Enrollment, error) {
	return repo.queryEnrollments(ctx, sq.Eq{"course_id": courseID})
}

func (repo enrollmentRepository) queryEnrollments(ctx context.Context, pred interface{}) ([]enrollment.Enrollment, error) {
	query, args, err := psql.Select(enrollmentColumns...).
		From(enrollmentTable).
		Where(pred).
		OrderBy("enrolled_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var dbEnrs []dbEnrollment
	if err = repo.db.SelectContext(ctx, &dbEnrs, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(dbEnrs))
	for _, e := range dbEnrs {
		enrs = append(enrs, e.unmarshal())
	}
	return enrs, nil
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	qb := psql.Update(enrollmentTable).
		Set("progress", enr.Progress).
		Set("completed_lessons", pq.StringArray(enr.CompletedLessons.List())).
		Where(sq.Eq{"id": enr.ID})
	if !enr.LastAccessedAt.IsZero() {
		qb = qb.Set("last_accessed_at", enr.LastAccessedAt.UTC())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return repo.GetEnrollmentByID(ctx, enr.ID)
}
