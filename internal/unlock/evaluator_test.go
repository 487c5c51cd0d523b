package unlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/progress"
)

// twoLessonCourse builds a sequential course with L1 -> A1 -> L2 -> A2.
func twoLessonCourse() catalog.CourseOutline {
	return catalog.CourseOutline{
		Course: catalog.Course{ID: "c1", SequentialEnabled: true},
		Modules: []catalog.ModuleOutline{
			{
				Module: catalog.Module{ID: "m1", CourseID: "c1", Position: 1},
				Lessons: []catalog.Lesson{
					{ID: "l1", ModuleID: "m1", SequenceOrder: 1},
					{ID: "l2", ModuleID: "m1", SequenceOrder: 2},
				},
			},
		},
		Assignments: map[string]catalog.Assignment{
			"l1": {ID: "a1", LessonID: "l1", SubmissionType: "text"},
			"l2": {ID: "a2", LessonID: "l2", SubmissionType: "text"},
		},
	}
}

func activeState(studentID string) StudentState {
	return StudentState{
		StudentID:         studentID,
		Active:            true,
		Views:             map[string]progress.LessonView{},
		LatestSubmissions: map[string]progress.Submission{},
		Enrollment:        progress.Enrollment{StudentID: studentID, CourseID: "c1", Status: progress.EnrollmentActive},
	}
}

func watched(st *StudentState, lessonIDs ...string) {
	for _, id := range lessonIDs {
		st.Views[id] = progress.LessonView{UserID: st.StudentID, LessonID: id, Watched: true}
	}
}

func submitted(st *StudentState, assignmentID, status string) {
	st.LatestSubmissions[assignmentID] = progress.Submission{
		ID: "s-" + assignmentID, AssignmentID: assignmentID,
		StudentID: st.StudentID, Status: status, Version: 1,
	}
}

func TestFreshStudentFirstLessonOnly(t *testing.T) {
	st := activeState("stu")
	out := EvaluateCourse(twoLessonCourse(), st, time.Now())

	require.Len(t, out.Lessons, 2)
	assert.True(t, out.Lessons[0].Unlocked)
	assert.False(t, out.Lessons[1].Unlocked)
	assert.Equal(t, ReasonPrevLessonNotWatched, out.Lessons[1].Reason)
	assert.Equal(t, "l1", out.Lessons[1].BlockingLessonID)
}

func TestPendingSubmissionBlocksNextLesson(t *testing.T) {
	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionPending)

	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.False(t, out.Lessons[1].Unlocked)
	assert.Equal(t, ReasonPrevAssignmentPending, out.Lessons[1].Reason)
	assert.Equal(t, "l1", out.Lessons[1].BlockingLessonID)
}

func TestWatchedButNotSubmitted(t *testing.T) {
	st := activeState("stu")
	watched(&st, "l1")

	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.Equal(t, ReasonPrevAssignmentMissing, out.Lessons[1].Reason)
}

func TestApprovalUnlocksNextLesson(t *testing.T) {
	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionApproved)

	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.True(t, out.Lessons[1].Unlocked)
	assert.Empty(t, out.Lessons[1].Reason)
}

func TestFeesGateDominatesEverything(t *testing.T) {
	st := activeState("stu")
	watched(&st, "l1", "l2")
	submitted(&st, "a1", progress.SubmissionApproved)
	submitted(&st, "a2", progress.SubmissionApproved)
	st.Active = false

	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	for _, ls := range out.Lessons {
		assert.False(t, ls.Unlocked)
		assert.Equal(t, ReasonFeesNotCleared, ls.Reason)
	}
	assert.False(t, out.Complete)
}

func TestUnlockIsMonotonicUnderDecline(t *testing.T) {
	// A declined resubmission of a1 must not re-lock l2: the evaluator sees
	// the latest submission, and decline means submittable again, but a prior
	// approval recorded on the latest version keeps l2 open. Here we model
	// the realistic sequence: v1 approved then nothing newer.
	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionApproved)

	first := EvaluateCourse(twoLessonCourse(), st, time.Now())
	require.True(t, first.Lessons[1].Unlocked)

	// Watching l2 never revokes anything earlier.
	watched(&st, "l2")
	second := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.True(t, second.Lessons[0].Unlocked)
	assert.True(t, second.Lessons[1].Unlocked)
}

func TestDripGate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	outline := twoLessonCourse()
	outline.Course.DripEnabled = true
	mod := &outline.Modules[0]
	mod.Lessons[1].DripUnlockAt = now.Unix() + 86400 // tomorrow

	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionApproved)

	out := EvaluateCourse(outline, st, now)
	require.False(t, out.Lessons[1].Unlocked)
	assert.Equal(t, ReasonDripLocked, out.Lessons[1].Reason)
	assert.Equal(t, now.Unix()+86400, out.Lessons[1].DripUnlockAt)

	// Exactly at the drip instant the lesson opens.
	atDate := EvaluateCourse(outline, st, now.Add(24*time.Hour))
	assert.True(t, atDate.Lessons[1].Unlocked)
}

func TestSequentialBeatsDripInReasonOrder(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	outline := twoLessonCourse()
	outline.Course.DripEnabled = true
	outline.Modules[0].Lessons[1].DripUnlockAt = now.Unix() + 3600

	st := activeState("stu") // nothing watched

	out := EvaluateCourse(outline, st, now)
	assert.Equal(t, ReasonPrevLessonNotWatched, out.Lessons[1].Reason)
}

func TestEnrollmentOverridesDisableSequential(t *testing.T) {
	st := activeState("stu")
	st.Enrollment.SequentialOverride = true
	st.Enrollment.SequentialEnabled = false

	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.True(t, out.Lessons[0].Unlocked)
	assert.True(t, out.Lessons[1].Unlocked)
}

func TestEnrollmentOverridesEnableDrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	outline := twoLessonCourse()
	outline.Course.DripEnabled = false // course default off
	outline.Modules[0].Lessons[1].DripUnlockAt = now.Unix() + 3600

	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionApproved)
	st.Enrollment.DripOverride = true
	st.Enrollment.DripEnabled = true

	out := EvaluateCourse(outline, st, now)
	assert.Equal(t, ReasonDripLocked, out.Lessons[1].Reason)
}

func TestEffectiveOverrideResolution(t *testing.T) {
	assert.True(t, progress.Effective(false, false, true))  // default wins
	assert.False(t, progress.Effective(false, true, false)) // enroll value ignored
	assert.True(t, progress.Effective(true, true, false))   // override wins
	assert.False(t, progress.Effective(true, false, true))
}

func TestMalformedOrderingFailsClosed(t *testing.T) {
	outline := twoLessonCourse()
	outline.Modules[0].Lessons[0].SequenceOrder = 0 // invalid

	st := activeState("stu")
	out := EvaluateCourse(outline, st, time.Now())
	assert.False(t, out.Lessons[0].Unlocked)
	assert.Equal(t, ReasonContentUnavailable, out.Lessons[0].Reason)
}

func TestDuplicateSequenceOrderLocksBoth(t *testing.T) {
	outline := twoLessonCourse()
	outline.Modules[0].Lessons[1].SequenceOrder = 1 // duplicate of l1

	st := activeState("stu")
	out := EvaluateCourse(outline, st, time.Now())
	assert.Equal(t, ReasonContentUnavailable, out.Lessons[0].Reason)
	assert.Equal(t, ReasonContentUnavailable, out.Lessons[1].Reason)
}

func TestAssignmentEligibility(t *testing.T) {
	st := activeState("stu")
	outline := twoLessonCourse()

	// Locked lesson, not watched: a1 not submittable.
	out := EvaluateCourse(outline, st, time.Now())
	assert.False(t, out.Assignments["a1"].Submittable)

	// Watched: submittable.
	watched(&st, "l1")
	out = EvaluateCourse(outline, st, time.Now())
	assert.True(t, out.Assignments["a1"].Submittable)

	// Pending review: blocked.
	submitted(&st, "a1", progress.SubmissionPending)
	out = EvaluateCourse(outline, st, time.Now())
	assert.False(t, out.Assignments["a1"].Submittable)
	assert.False(t, out.Assignments["a1"].ReadOnly)

	// Declined: resubmission allowed.
	submitted(&st, "a1", progress.SubmissionDeclined)
	out = EvaluateCourse(outline, st, time.Now())
	assert.True(t, out.Assignments["a1"].Submittable)

	// Approved: read-only.
	submitted(&st, "a1", progress.SubmissionApproved)
	out = EvaluateCourse(outline, st, time.Now())
	assert.False(t, out.Assignments["a1"].Submittable)
	assert.True(t, out.Assignments["a1"].ReadOnly)
}

func TestCourseCompleteRollup(t *testing.T) {
	st := activeState("stu")
	out := EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.False(t, out.Complete)
	assert.Equal(t, 0, out.WatchedLessons)
	assert.Equal(t, 2, out.TotalLessons)

	watched(&st, "l1", "l2")
	submitted(&st, "a1", progress.SubmissionApproved)
	submitted(&st, "a2", progress.SubmissionApproved)
	out = EvaluateCourse(twoLessonCourse(), st, time.Now())
	assert.True(t, out.Complete)
	assert.Equal(t, 2, out.WatchedLessons)
}

func TestEmptyCourseNeverComplete(t *testing.T) {
	outline := catalog.CourseOutline{Course: catalog.Course{ID: "c-empty"}}
	st := activeState("stu")
	out := EvaluateCourse(outline, st, time.Now())
	assert.False(t, out.Complete)
	assert.Equal(t, 0, out.TotalLessons)
}

func TestCrossModuleSequencing(t *testing.T) {
	outline := twoLessonCourse()
	outline.Modules = append(outline.Modules, catalog.ModuleOutline{
		Module:  catalog.Module{ID: "m2", CourseID: "c1", Position: 2},
		Lessons: []catalog.Lesson{{ID: "l3", ModuleID: "m2", SequenceOrder: 1}},
	})

	st := activeState("stu")
	watched(&st, "l1")
	submitted(&st, "a1", progress.SubmissionApproved)

	// l2 watched but its assignment unapproved: l3 in the next module stays
	// locked on the nearest gap.
	watched(&st, "l2")
	out := EvaluateCourse(outline, st, time.Now())
	require.Len(t, out.Lessons, 3)
	assert.Equal(t, ReasonPrevAssignmentMissing, out.Lessons[2].Reason)
	assert.Equal(t, "l2", out.Lessons[2].BlockingLessonID)
}
