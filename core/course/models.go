package course

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eduflow/eduflow/core"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var AllLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Course is a unit of the catalog. It is created in draft state and only
// becomes visible to students once published.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Level            string    `json:"level"`
	InstructorID     string    `json:"instructor_id"`
	InstructorName   string    `json:"instructor_name"`
	IsPublished      bool      `json:"is_published"`
	EnrolledStudents int       `json:"enrolled_students"`
	Rating           float64   `json:"rating"` // [0, 5], externally maintained
	Price            float64   `json:"price"`  // stored, never charged
	LearningOutcomes []string  `json:"learning_outcomes"`
	Requirements     []string  `json:"requirements"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

func (c *Course) IsOwnedBy(prinID string) bool { return c.InstructorID == prinID }

// Lesson belongs to exactly one Course. Order values define a strict total
// ordering within the course: 1-based, dense, no gaps.
type Lesson struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	VideoURL    string    `json:"video_url,omitempty"`
	Duration    int       `json:"duration"` // minutes
	Order       int       `json:"order"`
	IsPreview   bool      `json:"is_preview"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Redacted returns a copy safe to expose to principals that may not view
// the lesson's content yet.
func (l Lesson) Redacted() Lesson {
	l.Content = ""
	l.VideoURL = ""
	l.Attachments = nil
	return l
}

// SortLessons orders lessons by Order ascending; the access gate depends on it.
func SortLessons(lessons []Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
}

// InstructorStats aggregates an instructor's catalog for their dashboard.
// AverageRating only considers rated courses (Rating > 0) and is 0 when
// none of the instructor's courses have been rated yet.
type InstructorStats struct {
	InstructorID     string  `json:"instructor_id"`
	TotalCourses     int     `json:"total_courses"`
	PublishedCourses int     `json:"published_courses"`
	TotalStudents    int     `json:"total_students"`
	AverageRating    float64 `json:"average_rating"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title            string   `json:"title" validate:"required"`
	Description      string   `json:"description" validate:"required"`
	Category         string   `json:"category" validate:"required,alphanum_"`
	Level            string   `json:"level" validate:"required,courselevel"`
	Price            float64  `json:"price" validate:"omitempty,gte=0"`
	LearningOutcomes []string `json:"learning_outcomes"`
	Requirements     []string `json:"requirements"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category, true /* lower */)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what content fields the owning instructor may modify.
// The publish flag is deliberately absent; see Service.SetPublished.
type UpdateCourse struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category" validate:"omitempty,alphanum_"`
	Level            string   `json:"level" validate:"omitempty,courselevel"`
	Price            *float64 `json:"price" validate:"omitempty,gte=0"`
	Rating           *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"` // admin reconciliation only
	LearningOutcomes []string `json:"learning_outcomes"`
	Requirements     []string `json:"requirements"`
}

func (uc *UpdateCourse) Validate(origCrs Course, validate *validator.Validate) error {
	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = origCrs.Title
	}

	desc := core.CleanString(uc.Description)
	if desc != "" {
		uc.Description = desc
	} else {
		uc.Description = origCrs.Description
	}

	category := core.CleanString(uc.Category, true /* lower */)
	if category != "" {
		uc.Category = category
	} else {
		uc.Category = origCrs.Category
	}

	level := core.CleanString(uc.Level, true /* lower */)
	if level != "" {
		uc.Level = level
	} else {
		uc.Level = origCrs.Level
	}

	return validate.Struct(uc)
}

// NewLesson contains information needed to append a lesson to a course.
// Order is assigned by the service: one past the current last lesson.
type NewLesson struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	VideoURL    string   `json:"video_url" validate:"omitempty,url"`
	Duration    int      `json:"duration" validate:"omitempty,gte=0"`
	IsPreview   bool     `json:"is_preview"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,url"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	return validate.Struct(nl)
}

// UpdateLesson defines the mutable lesson fields. Order is changed via
// Service.ReorderLessons only, so density is preserved.
type UpdateLesson struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	VideoURL    string   `json:"video_url" validate:"omitempty,url"`
	Duration    *int     `json:"duration" validate:"omitempty,gte=0"`
	IsPreview   *bool    `json:"is_preview"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,url"`
}

func (ul *UpdateLesson) Validate(origLsn Lesson, validate *validator.Validate) error {
	title := core.CleanString(ul.Title)
	if title != "" {
		ul.Title = title
	} else {
		ul.Title = origLsn.Title
	}
	return validate.Struct(ul)
}

type QueryFilter struct {
	Search       string `query:"search"`
	Category     string `query:"category"`
	Level        string `query:"level"`
	InstructorID string `query:"instructor_id"`
	IsPublished  *bool  `query:"is_published"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.Level == "" && qf.InstructorID == "" && qf.IsPublished == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
}
