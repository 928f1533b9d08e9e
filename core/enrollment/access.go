package enrollment

import "github.com/eduflow/eduflow/core/course"

// LessonAccess pairs a lesson with the viewer's entitlement to open it.
type LessonAccess struct {
	Lesson     course.Lesson `json:"lesson"`
	Accessible bool          `json:"accessible"`
	Completed  bool          `json:"completed"`
}

// canAccess reports whether the lesson at idx of the ordered sequence is open
// to an enrolled student with the given completed set. Previews are always
// open; the first lesson is open; any other lesson requires its predecessor
// to be completed.
func canAccess(lessons []course.Lesson, idx int, completed LessonSet) bool {
	if lessons[idx].IsPreview {
		return true
	}
	if idx == 0 {
		return true
	}
	return completed.Has(lessons[idx-1].ID)
}

// resolveAccess computes per-lesson accessibility over the ordered lesson
// sequence. A nil completed set means the viewer is not enrolled: only
// previews are open and nothing is completed.
func resolveAccess(lessons []course.Lesson, completed LessonSet) []LessonAccess {
	course.SortLessons(lessons)
	accesses := make([]LessonAccess, len(lessons))
	for i, lsn := range lessons {
		la := LessonAccess{Lesson: lsn}
		if completed == nil {
			la.Accessible = lsn.IsPreview
		} else {
			la.Accessible = canAccess(lessons, i, completed)
			la.Completed = completed.Has(lsn.ID)
		}
		if !la.Accessible {
			la.Lesson = la.Lesson.Redacted()
		}
		accesses[i] = la
	}
	return accesses
}
