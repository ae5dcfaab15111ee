package authz

import "context"

type subjectContextKey struct{}

// ContextWithSubject stores the resolved authorization subject in context.
func ContextWithSubject(ctx context.Context, sub *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, sub)
}

// SubjectFromContext extracts the authorization subject, nil when the
// request is unauthenticated. Every decision path treats nil as no
// permission.
func SubjectFromContext(ctx context.Context) *Subject {
	sub, _ := ctx.Value(subjectContextKey{}).(*Subject)
	return sub
}
