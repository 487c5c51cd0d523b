package pathway

import (
	"errors"
	"sort"
)

var (
	// ErrCourseIncomplete rejects Advance while the current course still has
	// unwatched lessons or unapproved assignments. Recoverable: the caller
	// prompts the student to finish.
	ErrCourseIncomplete = errors.New("pathway: current course incomplete")
	// ErrChoicePending rejects Advance while a choice point is unresolved.
	ErrChoicePending = errors.New("pathway: choice pending")
	// ErrInvalidChoice rejects MakeChoice outside AwaitingChoice or with a
	// course that is not one of the group's alternatives. Caller bug.
	ErrInvalidChoice = errors.New("pathway: invalid choice")
	// ErrPathwayComplete rejects any transition after the terminal state.
	ErrPathwayComplete = errors.New("pathway: already complete")
	// ErrConcurrentAdvance means a concurrent transition already won; the
	// caller should refresh state, not surface an error.
	ErrConcurrentAdvance = errors.New("pathway: concurrent transition")

	ErrNotFound = errors.New("pathway: not found")
)

// Step is one entry of a pathway. Steps sharing a step number and a non-empty
// choice group are mutually exclusive alternatives ("OR" branch).
type Step struct {
	PathwayID   string `json:"pathway_id,omitempty"`
	StepNumber  int    `json:"step_number"`
	CourseID    string `json:"course_id"`
	ChoiceGroup string `json:"choice_group,omitempty"`
}

type Pathway struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id,omitempty"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Steps     []Step `json:"steps"` // ascending step number
}

// StepsAt returns the alternatives at one step number (one entry for a plain
// step).
func (p Pathway) StepsAt(n int) []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.StepNumber == n {
			out = append(out, s)
		}
	}
	return out
}

// LastStep returns the highest step number, 0 for an empty pathway.
func (p Pathway) LastStep() int {
	last := 0
	for _, s := range p.Steps {
		if s.StepNumber > last {
			last = s.StepNumber
		}
	}
	return last
}

type StateKind string

const (
	StateInProgress     StateKind = "in_progress"
	StateAwaitingChoice StateKind = "awaiting_choice"
	StateCompleted      StateKind = "completed"
)

// State is derived from enrollments and recorded choices, never stored
// verbatim.
type State struct {
	PathwayID    string    `json:"pathway_id"`
	Kind         StateKind `json:"kind"`
	StepNumber   int       `json:"step_number,omitempty"`
	CourseID     string    `json:"course_id,omitempty"`    // current course when in progress
	ChoiceGroup  string    `json:"choice_group,omitempty"` // set when awaiting choice
	Alternatives []string  `json:"alternatives,omitempty"` // courses to choose from
}

// DisplayStep is the rendering shape of one step: unresolved choice groups
// list every alternative (joined by "OR" in the UI), resolved groups show only
// the selected course.
type DisplayStep struct {
	StepNumber  int      `json:"step_number"`
	ChoiceGroup string   `json:"choice_group,omitempty"`
	CourseIDs   []string `json:"course_ids"`
	Selected    string   `json:"selected,omitempty"`
}

// Position is what DeriveState needs to know about the student's pathway
// enrollments: which steps are done and which one is live.
type Position struct {
	ActiveStep     int // 0 = none
	ActiveCourseID string
	MaxDoneStep    int // highest step with a completed enrollment
}

// DeriveState computes the student's position on a pathway from enrollment
// rows and recorded choices.
func DeriveState(p Pathway, prog Position, choices map[string]string) State {
	st := State{PathwayID: p.ID}
	if prog.ActiveStep > 0 {
		st.Kind = StateInProgress
		st.StepNumber = prog.ActiveStep
		st.CourseID = prog.ActiveCourseID
		return st
	}
	next := prog.MaxDoneStep + 1
	steps := p.StepsAt(next)
	if len(steps) == 0 {
		st.Kind = StateCompleted
		return st
	}
	group := steps[0].ChoiceGroup
	if group != "" {
		if chosen, ok := choices[group]; ok {
			// resolved but not yet enrolled; Advance finishes the job
			st.Kind = StateInProgress
			st.StepNumber = next
			st.CourseID = chosen
			return st
		}
		st.Kind = StateAwaitingChoice
		st.StepNumber = next
		st.ChoiceGroup = group
		for _, s := range steps {
			st.Alternatives = append(st.Alternatives, s.CourseID)
		}
		sort.Strings(st.Alternatives)
		return st
	}
	st.Kind = StateInProgress
	st.StepNumber = next
	st.CourseID = steps[0].CourseID
	return st
}

// DisplaySteps groups a pathway's steps for rendering.
func DisplaySteps(p Pathway, choices map[string]string) []DisplayStep {
	byStep := map[int][]Step{}
	var nums []int
	for _, s := range p.Steps {
		if len(byStep[s.StepNumber]) == 0 {
			nums = append(nums, s.StepNumber)
		}
		byStep[s.StepNumber] = append(byStep[s.StepNumber], s)
	}
	sort.Ints(nums)

	out := make([]DisplayStep, 0, len(nums))
	for _, n := range nums {
		steps := byStep[n]
		ds := DisplayStep{StepNumber: n, ChoiceGroup: steps[0].ChoiceGroup}
		if ds.ChoiceGroup != "" {
			if chosen, ok := choices[ds.ChoiceGroup]; ok {
				// once selected, only the chosen alternative renders
				ds.CourseIDs = []string{chosen}
				ds.Selected = chosen
			} else {
				for _, s := range steps {
					ds.CourseIDs = append(ds.CourseIDs, s.CourseID)
				}
				sort.Strings(ds.CourseIDs)
			}
		} else {
			ds.CourseIDs = []string{steps[0].CourseID}
		}
		out = append(out, ds)
	}
	return out
}
