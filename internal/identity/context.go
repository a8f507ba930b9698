package identity

import "context"

type contextKey string

const subjectKey contextKey = "deepresearch_subject"

// WithSubject stores the authenticated subject identifier on the context.
// An empty subject leaves the context untouched; absence means anonymous.
func WithSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the subject identifier, or "" for anonymous.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(subjectKey).(string); ok {
		return subject
	}
	return ""
}

// IsAuthenticated reports whether a subject identifier is present.
func IsAuthenticated(ctx context.Context) bool {
	return SubjectFromContext(ctx) != ""
}
