package pathway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/progress"
)

type recordedEvent struct {
	Type string
	Key  string
}

type eventRecorder struct{ events []recordedEvent }

func (r *eventRecorder) Append(_ context.Context, typ, key string, _ any) error {
	r.events = append(r.events, recordedEvent{Type: typ, Key: key})
	return nil
}

func (r *eventRecorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	cat    catalog.Store
	prog   progress.Store
	store  Store
	events *eventRecorder
	svc    *Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cat:    catalog.NewInMemoryStore(),
		prog:   progress.NewInMemoryStore(),
		store:  NewInMemoryStore(),
		events: &eventRecorder{},
		now:    time.Unix(1_700_000_000, 0),
	}
	f.svc = NewService(f.cat, f.prog, f.store, f.events)
	return f
}

// addCourse seeds a one-lesson course, optionally with an assignment on that
// lesson.
func (f *fixture) addCourse(t *testing.T, courseID string, withAssignment bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.cat.PutCourse(ctx, catalog.Course{ID: courseID, Title: courseID, SequentialEnabled: true}))
	require.NoError(t, f.cat.PutModule(ctx, catalog.Module{ID: courseID + "-m1", CourseID: courseID, Position: 1}))
	require.NoError(t, f.cat.PutLesson(ctx, catalog.Lesson{ID: courseID + "-l1", ModuleID: courseID + "-m1", SequenceOrder: 1}))
	if withAssignment {
		require.NoError(t, f.cat.PutAssignment(ctx, catalog.Assignment{
			ID: courseID + "-a1", LessonID: courseID + "-l1", SubmissionType: "text",
		}))
	}
}

// finishCourse watches every lesson and gets every assignment approved.
func (f *fixture) finishCourse(t *testing.T, studentID, courseID string, withAssignment bool) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.prog.MarkWatched(ctx, "", studentID, courseID+"-l1", f.now)
	require.NoError(t, err)
	if withAssignment {
		sub, err := f.prog.CreateSubmission(ctx, progress.Submission{
			AssignmentID: courseID + "-a1", StudentID: studentID, BodyText: "done",
		})
		require.NoError(t, err)
		_, err = f.prog.ReviewSubmission(ctx, sub.ID, progress.SubmissionApproved, "mentor", f.now)
		require.NoError(t, err)
	}
}

func (f *fixture) linearPathway(t *testing.T) Pathway {
	t.Helper()
	p := Pathway{ID: "pw1", Title: "Track", Steps: []Step{
		{StepNumber: 1, CourseID: "c1"},
		{StepNumber: 2, CourseID: "c2"},
	}}
	require.NoError(t, f.store.PutPathway(context.Background(), p))
	f.addCourse(t, "c1", true)
	f.addCourse(t, "c2", false)
	return p
}

func (f *fixture) choicePathway(t *testing.T) Pathway {
	t.Helper()
	p := Pathway{ID: "pw2", Title: "Branching", Steps: []Step{
		{StepNumber: 1, CourseID: "c1"},
		{StepNumber: 2, CourseID: "c2a", ChoiceGroup: "elective"},
		{StepNumber: 2, CourseID: "c2b", ChoiceGroup: "elective"},
		{StepNumber: 3, CourseID: "c3"},
	}}
	require.NoError(t, f.store.PutPathway(context.Background(), p))
	f.addCourse(t, "c1", false)
	f.addCourse(t, "c2a", false)
	f.addCourse(t, "c2b", false)
	f.addCourse(t, "c3", false)
	return p
}

func TestStartEnrollsAtStepOne(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	st, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.Kind)
	assert.Equal(t, 1, st.StepNumber)
	assert.Equal(t, "c1", st.CourseID)

	e, err := f.prog.GetEnrollment(ctx, "stu", "c1")
	require.NoError(t, err)
	assert.Equal(t, progress.EnrollmentActive, e.Status)
	assert.Equal(t, "pw1", e.PathwayID)
	assert.Equal(t, []string{"pathway.started"}, f.events.types())
}

func TestStartTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrConcurrentAdvance)
}

func TestAdvanceRejectsIncompleteCourse(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)

	// lesson unwatched
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrCourseIncomplete)

	// watched but assignment not approved
	_, _, err = f.prog.MarkWatched(ctx, "", "stu", "c1-l1", f.now)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrCourseIncomplete)
}

func TestAdvanceNeverStartedRejected(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)

	_, err := f.svc.Advance(context.Background(), "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrCourseIncomplete)
}

func TestAdvanceToNextStepAndComplete(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", true)

	st, err := f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.Kind)
	assert.Equal(t, 2, st.StepNumber)
	assert.Equal(t, "c2", st.CourseID)

	// step 1 enrollment flipped to completed
	e1, err := f.prog.GetEnrollment(ctx, "stu", "c1")
	require.NoError(t, err)
	assert.Equal(t, progress.EnrollmentCompleted, e1.Status)

	// finish the last course; pathway reaches the terminal state
	f.finishCourse(t, "stu", "c2", false)
	st, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.Kind)

	assert.Equal(t, []string{"pathway.started", "pathway.advanced", "pathway.completed"}, f.events.types())
}

func TestTerminalStateIsFinal(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", true)
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c2", false)
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)

	st, err := f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrPathwayComplete)
	assert.Equal(t, StateCompleted, st.Kind)

	_, err = f.svc.MakeChoice(ctx, "t1", "pw1", "stu", "c1", f.now)
	assert.ErrorIs(t, err, ErrPathwayComplete)

	// restarting a finished pathway is a terminal-state error, not a
	// concurrency conflict
	st, err = f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrPathwayComplete)
	assert.Equal(t, StateCompleted, st.Kind)
}

func TestStartMidPathwayConflicts(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", true)
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	assert.ErrorIs(t, err, ErrConcurrentAdvance)
}

func TestChoicePointBlocksAdvance(t *testing.T) {
	f := newFixture(t)
	f.choicePathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", false)

	st, err := f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingChoice, st.Kind)
	assert.Equal(t, 2, st.StepNumber)
	assert.Equal(t, "elective", st.ChoiceGroup)
	assert.Equal(t, []string{"c2a", "c2b"}, st.Alternatives)

	// no enrollment exists while the choice is open
	_, err = f.prog.GetEnrollment(ctx, "stu", "c2a")
	assert.ErrorIs(t, err, progress.ErrNotFound)

	_, err = f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	assert.ErrorIs(t, err, ErrChoicePending)
}

func TestMakeChoiceValidatesAlternatives(t *testing.T) {
	f := newFixture(t)
	f.choicePathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)

	// not at a choice point yet
	_, err = f.svc.MakeChoice(ctx, "t1", "pw2", "stu", "c2a", f.now)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	f.finishCourse(t, "stu", "c1", false)
	_, err = f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)

	// a course outside the group
	_, err = f.svc.MakeChoice(ctx, "t1", "pw2", "stu", "c3", f.now)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	st, err := f.svc.MakeChoice(ctx, "t1", "pw2", "stu", "c2b", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.Kind)
	assert.Equal(t, "c2b", st.CourseID)

	// one-way door: the group cannot be re-chosen
	_, err = f.svc.MakeChoice(ctx, "t1", "pw2", "stu", "c2a", f.now)
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestChoiceRecoveryAfterPartialCommit(t *testing.T) {
	// A crash between RecordChoice and the enrollment insert leaves the choice
	// recorded with no active enrollment. Advance finishes the transition.
	f := newFixture(t)
	f.choicePathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", false)
	_, err = f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)

	require.NoError(t, f.store.RecordChoice(ctx, "pw2", "stu", "elective", "c2a", f.now))

	st, err := f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.Kind)
	assert.Equal(t, "c2a", st.CourseID)

	e, err := f.prog.GetEnrollment(ctx, "stu", "c2a")
	require.NoError(t, err)
	assert.Equal(t, progress.EnrollmentActive, e.Status)
}

func TestStateReportsDisplaySteps(t *testing.T) {
	f := newFixture(t)
	f.choicePathway(t)
	ctx := context.Background()

	st, steps, err := f.svc.State(ctx, "pw2", "stu")
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.Kind) // fresh student sits at step 1
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"c2a", "c2b"}, steps[1].CourseIDs)
	assert.Empty(t, steps[1].Selected)

	_, err = f.svc.Start(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", false)
	_, err = f.svc.Advance(ctx, "t1", "pw2", "stu", f.now)
	require.NoError(t, err)
	_, err = f.svc.MakeChoice(ctx, "t1", "pw2", "stu", "c2a", f.now)
	require.NoError(t, err)

	_, steps, err = f.svc.State(ctx, "pw2", "stu")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2a"}, steps[1].CourseIDs)
	assert.Equal(t, "c2a", steps[1].Selected)
}

func TestDeriveStateEmptyPathway(t *testing.T) {
	st := DeriveState(Pathway{ID: "empty"}, Position{}, nil)
	assert.Equal(t, StateCompleted, st.Kind)
}

func TestConcurrentAdvanceLosesCleanly(t *testing.T) {
	f := newFixture(t)
	f.linearPathway(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)
	f.finishCourse(t, "stu", "c1", true)
	_, err = f.svc.Advance(ctx, "t1", "pw1", "stu", f.now)
	require.NoError(t, err)

	// A racing transition that lost still holds a pre-read position and tries
	// to insert the same step-2 enrollment.
	_, err = f.prog.CreateEnrollment(ctx, progress.Enrollment{
		StudentID: "stu", CourseID: "c2", PathwayID: "pw1", StepNumber: 2,
		Status: progress.EnrollmentActive,
	})
	assert.ErrorIs(t, err, progress.ErrEnrollmentConflict)
}
