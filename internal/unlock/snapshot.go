package unlock

import (
	"context"

	"github.com/courseloop/courseloop-lms/internal/progress"
)

// LoadState assembles the evaluator input for one student against one
// enrollment: views, latest submissions and the fees gate. Fetch happens here,
// immediately before evaluation; EvaluateCourse itself never touches a store.
func LoadState(ctx context.Context, ps progress.Store, e progress.Enrollment) (StudentState, error) {
	views, err := ps.Views(ctx, e.StudentID)
	if err != nil {
		return StudentState{}, err
	}
	subs, err := ps.LatestSubmissions(ctx, e.StudentID)
	if err != nil {
		return StudentState{}, err
	}
	return StudentState{
		StudentID:         e.StudentID,
		Active:            e.Status == progress.EnrollmentActive,
		Views:             views,
		LatestSubmissions: subs,
		Enrollment:        e,
	}, nil
}
