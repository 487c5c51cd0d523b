package progress

// Submission review states. One vocabulary everywhere: a submission is
// pending until a mentor approves or declines it.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionDeclined = "declined"
)

// Enrollment states. Anything other than "active" locks the student out of
// course content (fees gate).
const (
	EnrollmentActive    = "active"
	EnrollmentFeesDue   = "fees_due"
	EnrollmentCompleted = "completed"
	EnrollmentWithdrawn = "withdrawn"
)

// LessonView is one logical record per (user, lesson). Watched is monotonic:
// it never reverts to false, and marking an already-watched lesson is a no-op.
type LessonView struct {
	TenantID  string `json:"tenant_id,omitempty"`
	UserID    string `json:"user_id"`
	LessonID  string `json:"lesson_id"`
	Watched   bool   `json:"watched"`
	WatchedAt int64  `json:"watched_at,omitempty"` // unix seconds
}

// Submission is append-only: each resubmission gets the next version, and only
// the highest version counts for unlock and review purposes.
type Submission struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id,omitempty"`
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Status       string `json:"status"` // pending|approved|declined
	Version      int    `json:"version"`
	BodyText     string `json:"body_text,omitempty"`
	FileKey      string `json:"file_key,omitempty"` // blob store key for file submissions
	SubmittedAt  int64  `json:"submitted_at"`
	ReviewedAt   int64  `json:"reviewed_at,omitempty"`
	ReviewedBy   string `json:"reviewed_by,omitempty"`
}

// Enrollment binds a student to a course, optionally as a pathway step, and
// carries the per-student access-policy overrides layered over the course
// defaults.
type Enrollment struct {
	ID                 string `json:"id"`
	TenantID           string `json:"tenant_id,omitempty"`
	StudentID          string `json:"student_id"`
	CourseID           string `json:"course_id"`
	PathwayID          string `json:"pathway_id,omitempty"`
	StepNumber         int    `json:"step_number,omitempty"`
	Status             string `json:"status"`
	DripOverride       bool   `json:"drip_override"`
	DripEnabled        bool   `json:"drip_enabled"`
	SequentialOverride bool   `json:"sequential_override"`
	SequentialEnabled  bool   `json:"sequential_enabled"`
	CreatedAt          int64  `json:"created_at,omitempty"`
}

// AccessPatch is an admin update to enrollment-level policy. Nil fields are
// left untouched.
type AccessPatch struct {
	Status             *string `json:"status,omitempty"`
	DripOverride       *bool   `json:"drip_override,omitempty"`
	DripEnabled        *bool   `json:"drip_enabled,omitempty"`
	SequentialOverride *bool   `json:"sequential_override,omitempty"`
	SequentialEnabled  *bool   `json:"sequential_enabled,omitempty"`
}

// Effective resolves a two-level override: the enrollment value wins when its
// override flag is set, otherwise the course default applies. Used for both
// drip and sequential settings.
func Effective(override, enrollValue, courseDefault bool) bool {
	if override {
		return enrollValue
	}
	return courseDefault
}

// EffectiveDrip and EffectiveSequential apply Effective against a course's
// defaults.
func (e Enrollment) EffectiveDrip(courseDefault bool) bool {
	return Effective(e.DripOverride, e.DripEnabled, courseDefault)
}

func (e Enrollment) EffectiveSequential(courseDefault bool) bool {
	return Effective(e.SequentialOverride, e.SequentialEnabled, courseDefault)
}
