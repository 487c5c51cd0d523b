package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated user id for downstream handlers.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the authenticated user id, "" when the request
// never passed the JWT middleware.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
