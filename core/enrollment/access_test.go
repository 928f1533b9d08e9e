package enrollment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eduflow/eduflow/core/course"
)

func threeLessons() []course.Lesson {
	return []course.Lesson{
		{ID: "l1", CourseID: "c1", Title: "Intro", Order: 1, IsPreview: true, Content: "intro content"},
		{ID: "l2", CourseID: "c1", Title: "Basics", Order: 2, Content: "basics content"},
		{ID: "l3", CourseID: "c1", Title: "Advanced", Order: 3, Content: "advanced content"},
	}
}

func TestCanAccess(t *testing.T) {
	lessons := threeLessons()

	tests := []struct {
		name      string
		idx       int
		completed LessonSet
		want      bool
	}{
		{"first lesson, nothing completed", 0, NewLessonSet(), true},
		{"second lesson, nothing completed", 1, NewLessonSet(), false},
		{"second lesson, first completed", 1, NewLessonSet("l1"), true},
		{"third lesson, only first completed", 2, NewLessonSet("l1"), false},
		{"third lesson, second completed", 2, NewLessonSet("l2"), true},
		{"third lesson, all previous completed", 2, NewLessonSet("l1", "l2"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canAccess(lessons, tt.idx, tt.completed))
		})
	}

	t.Run("preview is always accessible", func(t *testing.T) {
		lsns := threeLessons()
		lsns[2].IsPreview = true
		assert.True(t, canAccess(lsns, 2, NewLessonSet()))
	})

	t.Run("non-first lesson becomes first", func(t *testing.T) {
		// deleting the real first lesson reindexes; whatever lesson now sits
		// at position 0 must open without prerequisites
		lsns := threeLessons()[1:]
		assert.True(t, canAccess(lsns, 0, NewLessonSet()))
	})
}

func TestResolveAccess(t *testing.T) {
	t.Run("non-enrolled viewer gets previews only", func(t *testing.T) {
		accesses := resolveAccess(threeLessons(), nil)

		assert.Len(t, accesses, 3)
		assert.True(t, accesses[0].Accessible)
		assert.NotEmpty(t, accesses[0].Lesson.Content)
		assert.False(t, accesses[1].Accessible)
		assert.Empty(t, accesses[1].Lesson.Content)
		assert.False(t, accesses[2].Accessible)
	})

	t.Run("enrolled viewer", func(t *testing.T) {
		accesses := resolveAccess(threeLessons(), NewLessonSet("l1"))

		assert.True(t, accesses[0].Accessible)
		assert.True(t, accesses[0].Completed)
		assert.True(t, accesses[1].Accessible)
		assert.False(t, accesses[1].Completed)
		assert.False(t, accesses[2].Accessible)
		assert.Empty(t, accesses[2].Lesson.Content)
	})

	t.Run("unordered input is sorted", func(t *testing.T) {
		lsns := threeLessons()
		lsns[0], lsns[2] = lsns[2], lsns[0]
		accesses := resolveAccess(lsns, NewLessonSet())

		assert.Equal(t, "l1", accesses[0].Lesson.ID)
		assert.Equal(t, "l3", accesses[2].Lesson.ID)
	})
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		completed LessonSet
		lessonIDs []string
		want      int
	}{
		{"no lessons", NewLessonSet(), nil, 0},
		{"nothing completed", NewLessonSet(), []string{"l1", "l2", "l3"}, 0},
		{"one of three", NewLessonSet("l1"), []string{"l1", "l2", "l3"}, 33},
		{"two of three", NewLessonSet("l1", "l2"), []string{"l1", "l2", "l3"}, 67},
		{"all completed", NewLessonSet("l1", "l2", "l3"), []string{"l1", "l2", "l3"}, 100},
		{"stale completed ids are ignored", NewLessonSet("l1", "gone"), []string{"l1", "l2"}, 50},
		{"one of six rounds down", NewLessonSet("l1"), []string{"l1", "l2", "l3", "l4", "l5", "l6"}, 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeProgress(tt.completed, tt.lessonIDs))
		})
	}
}

func TestComputeProgressConverges(t *testing.T) {
	// whatever order lessons are completed in, progress is a pure function of
	// the completed set and always ends at 100
	rng := rand.New(rand.NewSource(1))
	lessonIDs := []string{"l1", "l2", "l3", "l4", "l5"}

	for run := 0; run < 20; run++ {
		order := rng.Perm(len(lessonIDs))
		completed := NewLessonSet()
		prev := 0
		for _, i := range order {
			completed.Add(lessonIDs[i])
			p := ComputeProgress(completed, lessonIDs)
			assert.GreaterOrEqual(t, p, prev)
			prev = p
		}
		assert.Equal(t, 100, prev)
	}
}

func TestLessonSet(t *testing.T) {
	s := NewLessonSet("b", "a")

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))
	assert.False(t, s.Add("a")) // idempotent
	assert.True(t, s.Add("c"))
	assert.Equal(t, []string{"a", "b", "c"}, s.List())

	data, err := s.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))

	var parsed LessonSet
	assert.NoError(t, parsed.UnmarshalJSON([]byte(`["x","x","y"]`)))
	assert.Equal(t, 2, parsed.Len())
}
