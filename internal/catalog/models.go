package catalog

type Course struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenant_id,omitempty"`
	Title             string `json:"title"`
	DripEnabled       bool   `json:"drip_enabled"`
	SequentialEnabled bool   `json:"sequential_enabled"`
	CreatedBy         string `json:"created_by,omitempty"`
	CreatedAt         int64  `json:"created_at,omitempty"`
}

type Module struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Position int    `json:"position"` // unlock order within the course
}

type Lesson struct {
	ID              string `json:"id"`
	ModuleID        string `json:"module_id"`
	Title           string `json:"title"`
	SequenceOrder   int    `json:"sequence_order"` // unlock order within the module
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	DripUnlockAt    int64  `json:"drip_unlock_at,omitempty"` // unix seconds; 0 = no drip date
}

type Assignment struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id,omitempty"`
	Name           string `json:"name"`
	LessonID       string `json:"lesson_id,omitempty"` // the lesson that unlocks it; empty = standalone
	SubmissionType string `json:"submission_type"`     // text|file|link
}

// ModuleOutline is a module with its lessons in sequence order.
type ModuleOutline struct {
	Module  Module   `json:"module"`
	Lessons []Lesson `json:"lessons"`
}

// CourseOutline is the full ordered content graph of one course, plus the
// assignments keyed by the lesson that triggers them.
type CourseOutline struct {
	Course      Course                `json:"course"`
	Modules     []ModuleOutline       `json:"modules"`
	Assignments map[string]Assignment `json:"assignments,omitempty"` // lessonID -> assignment
}

// Lessons returns every lesson of the course in unlock order: modules by
// position, lessons by sequence order within each module.
func (o CourseOutline) Lessons() []Lesson {
	var out []Lesson
	for _, m := range o.Modules {
		out = append(out, m.Lessons...)
	}
	return out
}
