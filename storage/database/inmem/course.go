package inmemdb

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow/core"
	"github.com/eduflow/eduflow/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, crs := range repo.db.courses {
		if filter != nil && !matchCourse(*crs, filter) {
			continue
		}
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	sortCourses(courses, ordering)
	return courses, nil
}

func sortCourses(courses []course.Course, ordering []core.DBOrdering) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(courses, func(a, b int) bool {
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(courses[a].Title, courses[b].Title)
			case "rating":
				cmp = compareFloats(courses[a].Rating, courses[b].Rating)
			case "price":
				cmp = compareFloats(courses[a].Price, courses[b].Price)
			case "enrolled_students":
				cmp = courses[a].EnrolledStudents - courses[b].EnrolledStudents
			case "created_at":
				cmp = compareTimes(courses[a].CreatedAt, courses[b].CreatedAt)
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		})
	}
}

func matchCourse(crs course.Course, filter *course.QueryFilter) bool {
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(crs.Title), kw) &&
			!strings.Contains(strings.ToLower(crs.Description), kw) &&
			!strings.Contains(strings.ToLower(crs.InstructorName), kw) {
			return false
		}
	}
	if filter.Category != "" && crs.Category != filter.Category {
		return false
	}
	if filter.Level != "" && crs.Level != filter.Level {
		return false
	}
	if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
		return false
	}
	if filter.IsPublished != nil && crs.IsPublished != *filter.IsPublished {
		return false
	}
	return true
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, isPublished *bool) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origCrs, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.Title != "" {
		origCrs.Title = crs.Title
	}
	if crs.Description != "" {
		origCrs.Description = crs.Description
	}
	if crs.Category != "" {
		origCrs.Category = crs.Category
	}
	if crs.Level != "" {
		origCrs.Level = crs.Level
	}
	if crs.Price != 0 {
		origCrs.Price = crs.Price
	}
	if crs.Rating != 0 {
		origCrs.Rating = crs.Rating
	}
	if crs.LearningOutcomes != nil {
		origCrs.LearningOutcomes = crs.LearningOutcomes
	}
	if crs.Requirements != nil {
		origCrs.Requirements = crs.Requirements
	}
	if !crs.UpdatedAt.IsZero() {
		origCrs.UpdatedAt = crs.UpdatedAt
	}
	if isPublished != nil {
		origCrs.IsPublished = *isPublished
	}
	return *origCrs, nil
}

func (repo *courseRepository) GetInstructorStats(ctx context.Context, instructorID string) (course.InstructorStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := course.InstructorStats{InstructorID: instructorID}
	var ratingSum float64
	var rated int
	for _, crs := range repo.db.courses {
		if crs.InstructorID != instructorID {
			continue
		}
		stats.TotalCourses++
		if crs.IsPublished {
			stats.PublishedCourses++
		}
		stats.TotalStudents += crs.EnrolledStudents
		if crs.Rating > 0 {
			ratingSum += crs.Rating
			rated++
		}
	}
	if rated > 0 {
		stats.AverageRating = math.Round(ratingSum/float64(rated)*100) / 100
	}
	return stats, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.courses, id)
		for lsnID, lsn := range repo.db.lessons {
			if lsn.CourseID == id {
				delete(repo.db.lessons, lsnID)
			}
		}
		for enrID, enr := range repo.db.enrollments {
			if enr.CourseID == id {
				delete(repo.db.enrollments, enrID)
			}
		}
	}
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	lsn.ID = uuid.New().String()
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) queryLessons(courseID string) []course.Lesson {
	var lessons []course.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			lessons = append(lessons, *lsn)
		}
	}
	course.SortLessons(lessons)
	return lessons
}

func (repo *courseRepository) QueryLessonsByCourse(ctx context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryLessons(courseID), nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson, isPreview *bool) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origLsn, ok := repo.db.lessons[lsn.ID]
	if !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	if lsn.Title != "" {
		origLsn.Title = lsn.Title
	}
	if lsn.Description != "" {
		origLsn.Description = lsn.Description
	}
	if lsn.Content != "" {
		origLsn.Content = lsn.Content
	}
	if lsn.VideoURL != "" {
		origLsn.VideoURL = lsn.VideoURL
	}
	if lsn.Duration != 0 {
		origLsn.Duration = lsn.Duration
	}
	if lsn.Attachments != nil {
		origLsn.Attachments = lsn.Attachments
	}
	if !lsn.UpdatedAt.IsZero() {
		origLsn.UpdatedAt = lsn.UpdatedAt
	}
	if isPreview != nil {
		origLsn.IsPreview = *isPreview
	}
	return *origLsn, nil
}

func (repo *courseRepository) DeleteLessonAndReindex(ctx context.Context, lsn course.Lesson) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.ErrLessonNotFound
	}
	delete(repo.db.lessons, lsn.ID)

	// close the gap left in the course's order sequence
	for _, other := range repo.db.lessons {
		if other.CourseID == lsn.CourseID && other.Order > lsn.Order {
			other.Order--
		}
	}
	return nil
}

func (repo *courseRepository) ReorderLessons(ctx context.Context, courseID string, orderedIDs []string) ([]course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, id := range orderedIDs {
		lsn, ok := repo.db.lessons[id]
		if !ok || lsn.CourseID != courseID {
			return nil, course.ErrLessonNotFound
		}
		lsn.Order = i + 1
	}
	return repo.queryLessons(courseID), nil
}
