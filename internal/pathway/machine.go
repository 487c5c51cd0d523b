package pathway

import (
	"context"
	"errors"
	"time"

	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/unlock"
)

// EventSink receives progression events. Nil disables event recording.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Service drives pathway transitions. All reads happen up front against the
// stores; the transition decision itself is pure, and the single write that
// commits a transition relies on the enrollment uniqueness constraint to
// resolve races.
type Service struct {
	catalog  catalog.Store
	progress progress.Store
	store    Store
	events   EventSink
}

func NewService(c catalog.Store, pr progress.Store, st Store, ev EventSink) *Service {
	return &Service{catalog: c, progress: pr, store: st, events: ev}
}

// State reports the student's derived position plus the display grouping.
func (s *Service) State(ctx context.Context, pathwayID, studentID string) (State, []DisplayStep, error) {
	p, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return State{}, nil, err
	}
	pos, _, err := s.position(ctx, p, studentID)
	if err != nil {
		return State{}, nil, err
	}
	choices, err := s.store.ChoicesFor(ctx, pathwayID, studentID)
	if err != nil {
		return State{}, nil, err
	}
	return DeriveState(p, pos, choices), DisplaySteps(p, choices), nil
}

// Start enrolls the student at step 1. When step 1 is an unresolved choice
// group no enrollment is created and the student starts at AwaitingChoice.
func (s *Service) Start(ctx context.Context, tenantID, pathwayID, studentID string, now time.Time) (State, error) {
	p, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return State{}, err
	}
	pos, _, err := s.position(ctx, p, studentID)
	if err != nil {
		return State{}, err
	}
	choices, err := s.store.ChoicesFor(ctx, pathwayID, studentID)
	if err != nil {
		return State{}, err
	}
	st := DeriveState(p, pos, choices)
	if st.Kind == StateCompleted {
		return st, ErrPathwayComplete
	}
	if pos.ActiveStep > 0 || pos.MaxDoneStep > 0 {
		return State{}, ErrConcurrentAdvance
	}
	if st.Kind == StateAwaitingChoice {
		return st, nil
	}
	if err := s.enroll(ctx, tenantID, studentID, p.ID, st.StepNumber, st.CourseID, now); err != nil {
		return State{}, err
	}
	s.emit(ctx, "pathway.started", p.ID, map[string]any{
		"student_id": studentID, "course_id": st.CourseID,
	})
	return st, nil
}

// Advance moves to the next step once the current course is fully complete:
// every lesson watched and every triggered assignment approved, per the
// unlock evaluator.
func (s *Service) Advance(ctx context.Context, tenantID, pathwayID, studentID string, now time.Time) (State, error) {
	p, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return State{}, err
	}
	pos, active, err := s.position(ctx, p, studentID)
	if err != nil {
		return State{}, err
	}
	choices, err := s.store.ChoicesFor(ctx, pathwayID, studentID)
	if err != nil {
		return State{}, err
	}
	st := DeriveState(p, pos, choices)
	switch st.Kind {
	case StateCompleted:
		return st, ErrPathwayComplete
	case StateAwaitingChoice:
		return st, ErrChoicePending
	}

	if active == nil && pos.MaxDoneStep == 0 {
		// never enrolled; there is no current course to have completed
		return st, ErrCourseIncomplete
	}

	if active != nil {
		done, err := s.courseComplete(ctx, *active, now)
		if err != nil {
			return State{}, err
		}
		if !done {
			return st, ErrCourseIncomplete
		}
		completed := progress.EnrollmentCompleted
		if _, err := s.progress.UpdateEnrollmentAccess(ctx, active.ID, progress.AccessPatch{Status: &completed}); err != nil {
			return State{}, err
		}
		pos.ActiveStep, pos.ActiveCourseID = 0, ""
		if st.StepNumber > pos.MaxDoneStep {
			pos.MaxDoneStep = st.StepNumber
		}
	}

	next := DeriveState(p, pos, choices)
	switch next.Kind {
	case StateCompleted:
		s.emit(ctx, "pathway.completed", p.ID, map[string]any{"student_id": studentID})
		return next, nil
	case StateAwaitingChoice:
		s.emit(ctx, "pathway.advanced", p.ID, map[string]any{
			"student_id": studentID, "step_number": next.StepNumber, "choice_group": next.ChoiceGroup,
		})
		return next, nil
	}
	if err := s.enroll(ctx, tenantID, studentID, p.ID, next.StepNumber, next.CourseID, now); err != nil {
		return State{}, err
	}
	s.emit(ctx, "pathway.advanced", p.ID, map[string]any{
		"student_id": studentID, "step_number": next.StepNumber, "course_id": next.CourseID,
	})
	return next, nil
}

// MakeChoice commits one alternative of the pending choice group. The choice
// is a one-way door: once recorded the other alternatives stay unavailable
// for this student.
func (s *Service) MakeChoice(ctx context.Context, tenantID, pathwayID, studentID, courseID string, now time.Time) (State, error) {
	p, err := s.store.GetPathway(ctx, pathwayID)
	if err != nil {
		return State{}, err
	}
	pos, _, err := s.position(ctx, p, studentID)
	if err != nil {
		return State{}, err
	}
	choices, err := s.store.ChoicesFor(ctx, pathwayID, studentID)
	if err != nil {
		return State{}, err
	}
	st := DeriveState(p, pos, choices)
	if st.Kind == StateCompleted {
		return st, ErrPathwayComplete
	}
	if st.Kind != StateAwaitingChoice {
		return st, ErrInvalidChoice
	}
	valid := false
	for _, alt := range st.Alternatives {
		if alt == courseID {
			valid = true
			break
		}
	}
	if !valid {
		return st, ErrInvalidChoice
	}
	if err := s.store.RecordChoice(ctx, pathwayID, studentID, st.ChoiceGroup, courseID, now); err != nil {
		return State{}, err
	}
	if err := s.enroll(ctx, tenantID, studentID, p.ID, st.StepNumber, courseID, now); err != nil {
		return State{}, err
	}
	s.emit(ctx, "pathway.choice_made", p.ID, map[string]any{
		"student_id": studentID, "step_number": st.StepNumber,
		"choice_group": st.ChoiceGroup, "course_id": courseID,
	})
	return State{PathwayID: p.ID, Kind: StateInProgress, StepNumber: st.StepNumber, CourseID: courseID}, nil
}

func (s *Service) position(ctx context.Context, p Pathway, studentID string) (Position, *progress.Enrollment, error) {
	enrolls, err := s.progress.EnrollmentsForStudent(ctx, studentID)
	if err != nil {
		return Position{}, nil, err
	}
	var pos Position
	var active *progress.Enrollment
	for i, e := range enrolls {
		if e.PathwayID != p.ID {
			continue
		}
		switch e.Status {
		case progress.EnrollmentCompleted:
			if e.StepNumber > pos.MaxDoneStep {
				pos.MaxDoneStep = e.StepNumber
			}
		case progress.EnrollmentActive, progress.EnrollmentFeesDue:
			pos.ActiveStep = e.StepNumber
			pos.ActiveCourseID = e.CourseID
			active = &enrolls[i]
		}
	}
	return pos, active, nil
}

func (s *Service) courseComplete(ctx context.Context, e progress.Enrollment, now time.Time) (bool, error) {
	outline, err := s.catalog.GetOutline(ctx, e.CourseID)
	if err != nil {
		return false, err
	}
	st, err := unlock.LoadState(ctx, s.progress, e)
	if err != nil {
		return false, err
	}
	return unlock.EvaluateCourse(outline, st, now).Complete, nil
}

func (s *Service) enroll(ctx context.Context, tenantID, studentID, pathwayID string, step int, courseID string, now time.Time) error {
	_, err := s.progress.CreateEnrollment(ctx, progress.Enrollment{
		TenantID:   tenantID,
		StudentID:  studentID,
		CourseID:   courseID,
		PathwayID:  pathwayID,
		StepNumber: step,
		Status:     progress.EnrollmentActive,
		CreatedAt:  now.Unix(),
	})
	if errors.Is(err, progress.ErrEnrollmentConflict) {
		return ErrConcurrentAdvance
	}
	return err
}

func (s *Service) emit(ctx context.Context, typ, key string, data map[string]any) {
	if s.events == nil {
		return
	}
	_ = s.events.Append(ctx, typ, key, data)
}
