// Package unlock decides which lessons and assignments a student can reach.
// Evaluation is a pure function over a course outline, a snapshot of the
// student's progress and a wall-clock instant; callers fetch state, evaluate,
// then render or act on the result. Lock reasons are data, never errors.
package unlock

import (
	"time"

	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/progress"
)

// Reason explains why a lesson is locked. Empty means unlocked.
type Reason string

const (
	ReasonFeesNotCleared        Reason = "fees_not_cleared"
	ReasonPrevLessonNotWatched  Reason = "previous_lesson_not_watched"
	ReasonPrevAssignmentMissing Reason = "previous_assignment_not_submitted"
	ReasonPrevAssignmentPending Reason = "previous_assignment_not_approved"
	ReasonDripLocked            Reason = "drip_locked"
	ReasonContentUnavailable    Reason = "content_unavailable" // malformed graph fails closed
)

// StudentState is the progress snapshot the evaluator runs against. Callers
// assemble it from the stores immediately before evaluating.
type StudentState struct {
	StudentID string
	// Active reflects the student's LMS/billing status for this course.
	// When false every lesson locks with fees_not_cleared, regardless of
	// watch or submission history.
	Active            bool
	Views             map[string]progress.LessonView // lessonID -> view
	LatestSubmissions map[string]progress.Submission // assignmentID -> highest version
	Enrollment        progress.Enrollment
}

type LessonStatus struct {
	Lesson   catalog.Lesson `json:"lesson"`
	Unlocked bool           `json:"unlocked"`
	Watched  bool           `json:"watched"`
	Reason   Reason         `json:"reason,omitempty"`
	// DripUnlockAt carries the unlock date for display when drip_locked.
	DripUnlockAt int64 `json:"drip_unlock_at,omitempty"`
	// BlockingLessonID names the nearest unsatisfied predecessor when a
	// prerequisite reason applies.
	BlockingLessonID string `json:"blocking_lesson_id,omitempty"`
}

type AssignmentStatus struct {
	Assignment  catalog.Assignment   `json:"assignment"`
	Submittable bool                 `json:"submittable"`
	ReadOnly    bool                 `json:"read_only"` // approved, no resubmission
	Latest      *progress.Submission `json:"latest,omitempty"`
}

// CourseStatus is the evaluator's full verdict for one student on one course.
type CourseStatus struct {
	CourseID    string                      `json:"course_id"`
	Lessons     []LessonStatus              `json:"lessons"`
	Assignments map[string]AssignmentStatus `json:"assignments,omitempty"` // assignmentID
	// Rollup for display and for pathway advancement.
	WatchedLessons int  `json:"watched_lessons"`
	TotalLessons   int  `json:"total_lessons"`
	Complete       bool `json:"complete"`
}

// EvaluateCourse walks the course in unlock order (modules by position,
// lessons by sequence order) and applies the gate chain per lesson:
// fees, then sequential prerequisites, then drip dates.
func EvaluateCourse(outline catalog.CourseOutline, st StudentState, now time.Time) CourseStatus {
	lessons := outline.Lessons()
	out := CourseStatus{
		CourseID:     outline.Course.ID,
		Lessons:      make([]LessonStatus, 0, len(lessons)),
		Assignments:  map[string]AssignmentStatus{},
		TotalLessons: len(lessons),
	}

	sequential := st.Enrollment.EffectiveSequential(outline.Course.SequentialEnabled)
	drip := st.Enrollment.EffectiveDrip(outline.Course.DripEnabled)
	malformed := malformedLessons(outline)

	// Nearest unsatisfied predecessor so far, tracked while walking forward.
	var blockID string
	var blockReason Reason

	allWatched := true
	allApproved := true

	for _, l := range lessons {
		ls := LessonStatus{Lesson: l}
		if v, ok := st.Views[l.ID]; ok {
			ls.Watched = v.Watched
		}

		switch {
		case !st.Active:
			ls.Reason = ReasonFeesNotCleared
		case malformed[l.ID]:
			ls.Reason = ReasonContentUnavailable
		case sequential && blockReason != "":
			ls.Reason = blockReason
			ls.BlockingLessonID = blockID
		case drip && l.DripUnlockAt != 0 && l.DripUnlockAt > now.Unix():
			ls.Reason = ReasonDripLocked
			ls.DripUnlockAt = l.DripUnlockAt
		}
		ls.Unlocked = ls.Reason == ""
		out.Lessons = append(out.Lessons, ls)

		if ls.Watched {
			out.WatchedLessons++
		} else {
			allWatched = false
		}

		// This lesson now becomes a predecessor for everything after it.
		// Later unsatisfied lessons replace earlier ones so successors
		// report the nearest gap. Precedence when one lesson fails in more
		// than one way: not watched, then assignment missing, then
		// assignment unapproved.
		if reason := predecessorGap(l, outline, st); reason != "" {
			blockReason = reason
			blockID = l.ID
		}

		if a, ok := outline.Assignments[l.ID]; ok {
			as := assignmentStatus(a, ls, st)
			out.Assignments[a.ID] = as
			if as.Latest == nil || as.Latest.Status != progress.SubmissionApproved {
				allApproved = false
			}
		}
	}

	out.Complete = len(lessons) > 0 && allWatched && allApproved && st.Active
	return out
}

// predecessorGap reports why a lesson does not yet satisfy the sequential
// prerequisite for its successors, or "" when it does.
func predecessorGap(l catalog.Lesson, outline catalog.CourseOutline, st StudentState) Reason {
	v, ok := st.Views[l.ID]
	if !ok || !v.Watched {
		return ReasonPrevLessonNotWatched
	}
	a, ok := outline.Assignments[l.ID]
	if !ok {
		return ""
	}
	sub, ok := st.LatestSubmissions[a.ID]
	if !ok {
		return ReasonPrevAssignmentMissing
	}
	if sub.Status != progress.SubmissionApproved {
		return ReasonPrevAssignmentPending
	}
	return ""
}

func assignmentStatus(a catalog.Assignment, ls LessonStatus, st StudentState) AssignmentStatus {
	as := AssignmentStatus{Assignment: a}
	if sub, ok := st.LatestSubmissions[a.ID]; ok {
		cp := sub
		as.Latest = &cp
	}
	// Eligible only once the triggering lesson is unlocked and watched.
	if !ls.Unlocked || !ls.Watched {
		return as
	}
	switch {
	case as.Latest == nil:
		as.Submittable = true
	case as.Latest.Status == progress.SubmissionDeclined:
		as.Submittable = true // new, higher version
	case as.Latest.Status == progress.SubmissionApproved:
		as.ReadOnly = true
	}
	// pending: blocked until reviewed
	return as
}

// malformedLessons flags lessons whose ordering data cannot be trusted:
// non-positive or duplicated sequence numbers within a module. These fail
// closed (locked) rather than guessing an order for student-facing access.
func malformedLessons(outline catalog.CourseOutline) map[string]bool {
	bad := map[string]bool{}
	for _, m := range outline.Modules {
		seen := map[int]string{}
		for _, l := range m.Lessons {
			if l.SequenceOrder <= 0 {
				bad[l.ID] = true
				continue
			}
			if prev, dup := seen[l.SequenceOrder]; dup {
				bad[l.ID] = true
				bad[prev] = true
				continue
			}
			seen[l.SequenceOrder] = l.ID
		}
	}
	return bad
}
