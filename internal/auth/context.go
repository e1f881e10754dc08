package auth

import "context"

type contextKey struct{}

// Roles carried in an AuthContext.
const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type AuthContext struct {
	UserID    int64
	FamilyID  int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.FamilyID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	return ok && ac.Role == RoleParent
}

func IsChild(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	return ok && ac.Role == RoleChild
}
