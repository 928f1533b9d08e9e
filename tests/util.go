package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/enrollment"
	"github.com/eduflow/eduflow/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title string,
	instructor user.User,
	isPublished bool,
) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs := course.Course{
		Title:          title,
		Description:    title + " description",
		Category:       "programming",
		Level:          course.LevelBeginner,
		InstructorID:   instructor.ID,
		InstructorName: instructor.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	if isPublished {
		published := true
		if crs, err = repo.UpdateCourse(context.Background(), course.Course{ID: crs.ID}, &published); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
	return crs
}

func CreateLesson(
	t *testing.T,
	repo course.Repository,
	crs course.Course,
	title string,
	order int,
	isPreview bool,
) course.Lesson {
	t.Helper()

	now := time.Now().UTC()
	lsn := course.Lesson{
		CourseID:  crs.ID,
		Title:     title,
		Content:   title + " content",
		Order:     order,
		IsPreview: isPreview,
		CreatedAt: now,
		UpdatedAt: now,
	}
	lsn, err := repo.CreateLesson(context.Background(), lsn)
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return lsn
}

func CreateEnrollment(
	t *testing.T,
	repo enrollment.Repository,
	usr user.User,
	crs course.Course,
	completedLessons ...string,
) enrollment.Enrollment {
	t.Helper()

	now := time.Now().UTC()
	enr := enrollment.Enrollment{
		UserID:           usr.ID,
		CourseID:         crs.ID,
		CompletedLessons: enrollment.NewLessonSet(completedLessons...),
		EnrolledAt:       now,
		LastAccessedAt:   now,
	}
	enr, err := repo.CreateEnrollment(context.Background(), enr)
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}
