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

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/course"
)

const (
	courseTable = "course"
	lessonTable = "lesson"
)

var courseColumns = []string{
	"id", "title", "description", "category", "level", "instructor_id",
	"instructor_name", "is_published", "enrolled_students", "rating", "price",
	"learning_outcomes", "requirements", "created_at", "updated_at",
}

var lessonColumns = []string{
	"id", "course_id", "title", "description", "content", "video_url",
	"duration", `"order"`, "is_preview", "attachments", "created_at", "updated_at",
}

type dbCourse struct {
	ID               string         `db:"id"`
	Title            null.String    `db:"title"`
	Description      null.String    `db:"description"`
	Category         null.String    `db:"category"`
	Level            null.String    `db:"level"`
	InstructorID     null.String    `db:"instructor_id"`
	InstructorName   null.String    `db:"instructor_name"`
	IsPublished      null.Bool      `db:"is_published"`
	EnrolledStudents null.Int       `db:"enrolled_students"`
	Rating           null.Float64   `db:"rating"`
	Price            null.Float64   `db:"price"`
	LearningOutcomes pq.StringArray `db:"learning_outcomes"`
	Requirements     pq.StringArray `db:"requirements"`
	CreatedAt        null.Time      `db:"created_at"`
	UpdatedAt        null.Time      `db:"updated_at"`
}

func marshalCourse(crs course.Course) dbCourse {
	return dbCourse{
		ID:               crs.ID,
		Title:            null.NewString(crs.Title, crs.Title != ""),
		Description:      null.NewString(crs.Description, crs.Description != ""),
		Category:         null.NewString(crs.Category, crs.Category != ""),
		Level:            null.NewString(crs.Level, crs.Level != ""),
		InstructorID:     null.NewString(crs.InstructorID, crs.InstructorID != ""),
		InstructorName:   null.NewString(crs.InstructorName, crs.InstructorName != ""),
		IsPublished:      null.BoolFrom(crs.IsPublished),
		EnrolledStudents: null.IntFrom(crs.EnrolledStudents),
		Rating:           null.Float64From(crs.Rating),
		Price:            null.Float64From(crs.Price),
		LearningOutcomes: crs.LearningOutcomes,
		Requirements:     crs.Requirements,
		CreatedAt:        null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:        null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func (c dbCourse) unmarshal() course.Course {
	return course.Course{
		ID:               c.ID,
		Title:            c.Title.String,
		Description:      c.Description.String,
		Category:         c.Category.String,
		Level:            c.Level.String,
		InstructorID:     c.InstructorID.String,
		InstructorName:   c.InstructorName.String,
		IsPublished:      c.IsPublished.Bool,
		EnrolledStudents: c.EnrolledStudents.Int,
		Rating:           c.Rating.Float64,
		Price:            c.Price.Float64,
		LearningOutcomes: c.LearningOutcomes,
		Requirements:     c.Requirements,
		CreatedAt:        c.CreatedAt.Time,
		UpdatedAt:        c.UpdatedAt.Time,
	}
}

func (c dbCourse) values() []interface{} {
	return []interface{}{
		c.ID, c.Title, c.Description, c.Category, c.Level, c.InstructorID,
		c.InstructorName, c.IsPublished, c.EnrolledStudents, c.Rating, c.Price,
		c.LearningOutcomes, c.Requirements, c.CreatedAt, c.UpdatedAt,
	}
}

type dbLesson struct {
	ID          string         `db:"id"`
	CourseID    null.String    `db:"course_id"`
	Title       null.String    `db:"title"`
	Description null.String    `db:"description"`
	Content     null.String    `db:"content"`
	VideoURL    null.String    `db:"video_url"`
	Duration    null.Int       `db:"duration"`
	Order       null.Int       `db:"order"`
	IsPreview   null.Bool      `db:"is_preview"`
	Attachments pq.StringArray `db:"attachments"`
	CreatedAt   null.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func marshalLesson(lsn course.Lesson) dbLesson {
	return dbLesson{
		ID:          lsn.ID,
		CourseID:    null.NewString(lsn.CourseID, lsn.CourseID != ""),
		Title:       null.NewString(lsn.Title, lsn.Title != ""),
		Description: null.NewString(lsn.Description, lsn.Description != ""),
		Content:     null.NewString(lsn.Content, lsn.Content != ""),
		VideoURL:    null.NewString(lsn.VideoURL, lsn.VideoURL != ""),
		Duration:    null.IntFrom(lsn.Duration),
		Order:       null.IntFrom(lsn.Order),
		IsPreview:   null.BoolFrom(lsn.IsPreview),
		Attachments: lsn.Attachments,
		CreatedAt:   null.NewTime(lsn.CreatedAt.UTC(), !lsn.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(lsn.UpdatedAt.UTC(), !lsn.UpdatedAt.IsZero()),
	}
}

func (l dbLesson) unmarshal() course.Lesson {
	return course.Lesson{
		ID:          l.ID,
		CourseID:    l.CourseID.String,
		Title:       l.Title.String,
		Description: l.Description.String,
		Content:     l.Content.String,
		VideoURL:    l.VideoURL.String,
		Duration:    l.Duration.Int,
		Order:       l.Order.Int,
		IsPreview:   l.IsPreview.Bool,
		Attachments: l.Attachments,
		CreatedAt:   l.CreatedAt.Time,
		UpdatedAt:   l.UpdatedAt.Time,
	}
}

func (l dbLesson) values() []interface{} {
	return []interface{}{
		l.ID, l.CourseID, l.Title, l.Description, l.Content, l.VideoURL,
		l.Duration, l.Order, l.IsPreview, l.Attachments, l.CreatedAt, l.UpdatedAt,
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	c := marshalCourse(crs)

	query, args, err := psql.Insert(courseTable).Columns(courseColumns...).Values(c.values()...).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	query, args, err := psql.Select(courseColumns...).From(courseTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}

	var c dbCourse
	if err = repo.db.GetContext(ctx, &c, query, args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return c.unmarshal(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	qb := psql.Select(courseColumns...).From(courseTable)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb = qb.Where(sq.Or{
				sq.ILike{"title": val},
				sq.ILike{"description": val},
				sq.ILike{"instructor_name": val},
			})
		}
		if filter.Category != "" {
			qb = qb.Where(sq.Eq{"category": filter.Category})
		}
		if filter.Level != "" {
			qb = qb.Where(sq.Eq{"level": filter.Level})
		}
		if filter.InstructorID != "" {
			qb = qb.Where(sq.Eq{"instructor_id": filter.InstructorID})
		}
		if filter.IsPublished != nil {
			qb = qb.Where(sq.Eq{"is_published": *filter.IsPublished})
		}
	}
	for _, ord := range ordering {
		qb = qb.OrderBy(ord.String())
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var dbCourses []dbCourse
	if err = repo.db.SelectContext(ctx, &dbCourses, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(dbCourses))
	for _, c := range dbCourses {
		courses = append(courses, c.unmarshal())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, isPublished *bool) (course.Course, error) {
	qb := psql.Update(courseTable).Where(sq.Eq{"id": crs.ID})

	// only save set fields
	if crs.Title != "" {
		qb = qb.Set("title", crs.Title)
	}
	if crs.Description != "" {
		qb = qb.Set("description", crs.Description)
	}
	if crs.Category != "" {
		qb = qb.Set("category", crs.Category)
	}
	if crs.Level != "" {
		qb = qb.Set("level", crs.Level)
	}
	if crs.Price != 0 {
		qb = qb.Set("price", crs.Price)
	}
	if crs.Rating != 0 {
		qb = qb.Set("rating", crs.Rating)
	}
	if crs.LearningOutcomes != nil {
		qb = qb.Set("learning_outcomes", pq.StringArray(crs.LearningOutcomes))
	}
	if crs.Requirements != nil {
		qb = qb.Set("requirements", pq.StringArray(crs.Requirements))
	}
	if !crs.UpdatedAt.IsZero() {
		qb = qb.Set("updated_at", crs.UpdatedAt.UTC())
	}
	if isPublished != nil {
		qb = qb.Set("is_published", *isPublished)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.GetCourseByID(ctx, crs.ID)
}

type dbInstructorStats struct {
	TotalCourses     int     `db:"total_courses"`
	PublishedCourses int     `db:"published_courses"`
	TotalStudents    int     `db:"total_students"`
	AverageRating    float64 `db:"average_rating"`
}

func (repo courseRepository) GetInstructorStats(ctx context.Context, instructorID string) (course.InstructorStats, error) {
	query, args, err := psql.Select(
		"count(*) AS total_courses",
		"count(*) FILTER (WHERE is_published) AS published_courses",
		"coalesce(sum(enrolled_students), 0) AS total_students",
		"coalesce(round(cast(avg(rating) FILTER (WHERE rating > 0) AS numeric), 2), 0) AS average_rating",
	).From(courseTable).Where(sq.Eq{"instructor_id": instructorID}).ToSql()
	if err != nil {
		return course.InstructorStats{}, errors.Wrap(err, "building query")
	}

	var s dbInstructorStats
	if err = repo.db.GetContext(ctx, &s, query, args...); err != nil {
		return course.InstructorStats{}, errors.Wrap(err, "getting instructor stats")
	}
	return course.InstructorStats{
		InstructorID:     instructorID,
		TotalCourses:     s.TotalCourses,
		PublishedCourses: s.PublishedCourses,
		TotalStudents:    s.TotalStudents,
		AverageRating:    s.AverageRating,
	}, nil
}

// DeleteCoursesByID relies on ON DELETE CASCADE to drop the courses'
// lessons and enrollments.
func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Delete(courseTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	lsn.ID = uuid.New().String()
	l := marshalLesson(lsn)

	query, args, err := psql.Insert(lessonTable).Columns(lessonColumns...).Values(l.values()...).ToSql()
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	query, args, err := psql.Select(lessonColumns...).From(lessonTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "building query")
	}

	var l dbLesson
	if err = repo.db.GetContext(ctx, &l, query, args...); err != nil {
		return course.Lesson{}, repo.trapNoRowsErr(err, course.ErrLessonNotFound, "getting lesson")
	}
	return l.unmarshal(), nil
}

func (repo courseRepository) QueryLessonsByCourse(ctx context.Context, courseID string) ([]course.Lesson, error) {
	query, args, err := psql.Select(lessonColumns...).
		From(lessonTable).
		Where(sq.Eq{"course_id": courseID}).
		OrderBy(`"order" ASC`).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var dbLessons []dbLesson
	if err = repo.db.SelectContext(ctx, &dbLessons, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(dbLessons))
	for _, l := range dbLessons {
		lessons = append(lessons, l.unmarshal())
	}
	return lessons, nil
}

func (repo courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson, isPreview *bool) (course.Lesson, error) {
	qb := psql.Update(lessonTable).Where(sq.Eq{"id": lsn.ID})

	if lsn.Title != "" {
		qb = qb.Set("title", lsn.Title)
	}
	if lsn.Description != "" {
		qb = qb.Set("description", lsn.Description)
	}
	if lsn.Content != "" {
		qb = qb.Set("content", lsn.Content)
	}
	if lsn.VideoURL != "" {
		qb = qb.Set("video_url", lsn.VideoURL)
	}
	if lsn.Duration != 0 {
		qb = qb.Set("duration", lsn.Duration)
	}
	if lsn.Attachments != nil {
		qb = qb.Set("attachments", pq.StringArray(lsn.Attachments))
	}
	if !lsn.UpdatedAt.IsZero() {
		qb = qb.Set("updated_at", lsn.UpdatedAt.UTC())
	}
	if isPreview != nil {
		qb = qb.Set("is_preview", *isPreview)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	return repo.GetLessonByID(ctx, lsn.ID)
}

func (repo courseRepository) DeleteLessonAndReindex(ctx context.Context, lsn course.Lesson) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Delete(lessonTable).Where(sq.Eq{"id": lsn.ID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}

	// close the gap left in the course's order sequence
	query, args, err = psql.Update(lessonTable).
		Set(`"order"`, sq.Expr(`"order" - 1`)).
		Where(sq.Eq{"course_id": lsn.CourseID}).
		Where(sq.Gt{`"order"`: lsn.Order}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "reindexing lessons")
	}

	return errors.Wrap(tx.Commit(), "committing tx")
}

func (repo courseRepository) ReorderLessons(ctx context.Context, courseID string, orderedIDs []string) ([]course.Lesson, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range orderedIDs {
		query, args, err := psql.Update(lessonTable).
			Set(`"order"`, i+1).
			Where(sq.Eq{"id": id, "course_id": courseID}).
			ToSql()
		if err != nil {
			return nil, errors.Wrap(err, "building query")
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "reordering lessons")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, course.ErrLessonNotFound
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing tx")
	}
	return repo.QueryLessonsByCourse(ctx, courseID)
}
