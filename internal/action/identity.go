package action

import (
	"context"
	"strings"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// IdentityProvider supplies the current operator.
type IdentityProvider interface {
	// Identity returns the operator, or false if none is configured.
	Identity(ctx context.Context) (logic.Staff, bool)
}

// StaticIdentity is an operator fixed at startup, e.g. from configuration.
type StaticIdentity logic.Staff

// Identity implements IdentityProvider.
func (s StaticIdentity) Identity(context.Context) (logic.Staff, bool) {
	staff := normalizeStaff(logic.Staff(s))
	return staff, complete(staff)
}

type staffKey struct{}

// WithStaff attaches the operator for one request.
func WithStaff(ctx context.Context, staff logic.Staff) context.Context {
	return context.WithValue(ctx, staffKey{}, normalizeStaff(staff))
}

// ContextIdentity reads the operator attached by WithStaff and falls back
// to Fallback when the request carries none.
type ContextIdentity struct {
	Fallback IdentityProvider
}

// Identity implements IdentityProvider.
func (c ContextIdentity) Identity(ctx context.Context) (logic.Staff, bool) {
	if staff, ok := ctx.Value(staffKey{}).(logic.Staff); ok && complete(staff) {
		return staff, true
	}
	if c.Fallback != nil {
		return c.Fallback.Identity(ctx)
	}
	return logic.Staff{}, false
}

func normalizeStaff(s logic.Staff) logic.Staff {
	return logic.Staff{
		Initials: strings.ToUpper(strings.TrimSpace(s.Initials)),
		ID:       strings.TrimSpace(s.ID),
	}
}

func complete(s logic.Staff) bool {
	return s.Initials != "" && s.ID != ""
}
