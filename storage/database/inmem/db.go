package inmemdb

import (
	"sync"
	"time"

	"github.com/eduflow/eduflow/core/course"
	"github.com/eduflow/eduflow/core/enrollment"
	"github.com/eduflow/eduflow/core/user"
)

// DB is an in-memory database for tests. A single lock guards all tables so
// cross-table operations (enrollment counters, lesson reindexing) stay atomic.
type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	lessons     map[string]*course.Lesson
	enrollments map[string]*enrollment.Enrollment
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		lessons:     make(map[string]*course.Lesson),
		enrollments: make(map[string]*enrollment.Enrollment),
	}
}

func compareFloats(f1, f2 float64) int {
	switch {
	case f1 < f2:
		return -1
	case f1 > f2:
		return 1
	}
	return 0
}

func compareTimes(t1, t2 time.Time) int {
	switch {
	case t1.Before(t2):
		return -1
	case t1.After(t2):
		return 1
	}
	return 0
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.lessons = make(map[string]*course.Lesson)
	db.enrollments = make(map[string]*enrollment.Enrollment)
}
