package utils

import (
	"context"

	"github.com/dormstack/dormops_client/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyActorRoles    = appctx.ContextKeyActorRoles
	ContextKeyFloorNo       = appctx.ContextKeyFloorNo
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyIsAdmin       = appctx.ContextKeyIsAdmin
)

const (
	RoleFloorManager = "FLOOR_MANAGER"
	RoleAdmin        = "ADMIN"
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetActorIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetActorRolesFromContext(ctx context.Context) ([]string, bool) {
	return appctx.GetStrings(ctx, ContextKeyActorRoles)
}

func GetFloorNoFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyFloorNo)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetActorIdInContext(ctx context.Context, actorId string) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

func SetActorRolesInContext(ctx context.Context, roles []string) context.Context {
	return appctx.Set(ctx, ContextKeyActorRoles, roles)
}

func SetFloorNoInContext(ctx context.Context, floorNo int) context.Context {
	return appctx.Set(ctx, ContextKeyFloorNo, floorNo)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

// IsAdmin reports whether the current actor may use the admin surface
// (reallocation preview and apply). The explicit flag wins; absent a flag,
// the ADMIN role decides.
func IsAdmin(ctx context.Context) bool {
	if v, ok := appctx.GetBool(ctx, ContextKeyIsAdmin); ok {
		return v
	}
	roles, ok := GetActorRolesFromContext(ctx)
	if !ok {
		return false
	}
	for _, role := range roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

// CanInspect reports whether the current actor may start or continue an
// inspection session.
func CanInspect(ctx context.Context) bool {
	roles, ok := GetActorRolesFromContext(ctx)
	if !ok {
		return false
	}
	for _, role := range roles {
		if role == RoleFloorManager || role == RoleAdmin {
			return true
		}
	}
	return false
}
