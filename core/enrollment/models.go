package enrollment

import (
	"encoding/json"
	"sort"
	"time"
)

// LessonSet holds the ids of completed lessons. It is semantically a set:
// adding an id twice is a no-op, so MarkLessonComplete is idempotent by
// construction. It serializes as a sorted JSON list.
type LessonSet map[string]struct{}

func NewLessonSet(ids ...string) LessonSet {
	s := make(LessonSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether the set changed.
func (s LessonSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s LessonSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s LessonSet) Len() int { return len(s) }

// List returns the ids sorted, for stable serialization.
func (s LessonSet) List() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s LessonSet) Clone() LessonSet {
	clone := make(LessonSet, len(s))
	for id := range s {
		clone[id] = struct{}{}
	}
	return clone
}

func (s LessonSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *LessonSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewLessonSet(ids...)
	return nil
}

// Enrollment records a user's opt-in to a course and the progress bookkeeping
// it carries thereafter. There is exactly one per (user, course) pair.
type Enrollment struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	CourseID         string    `json:"course_id"`
	Progress         int       `json:"progress"` // derived percentage, 0-100
	CompletedLessons LessonSet `json:"completed_lessons"`
	EnrolledAt       time.Time `json:"enrolled_at"`       // UTC
	LastAccessedAt   time.Time `json:"last_accessed_at"`  // UTC
}

func (e *Enrollment) IsOwnedBy(prinID string) bool { return e.UserID == prinID }

// ComputeProgress derives the progress percentage from the completed set and
// the course's current lesson count: round(100 * completed / total), counting
// only completed ids that still name a lesson of the course. A course with
// zero lessons yields 0.
func ComputeProgress(completed LessonSet, lessonIDs []string) int {
	if len(lessonIDs) == 0 {
		return 0
	}
	var done int
	for _, id := range lessonIDs {
		if completed.Has(id) {
			done++
		}
	}
	return int(float64(done)/float64(len(lessonIDs))*100 + 0.5)
}
