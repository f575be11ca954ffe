package rowstore

import (
	"context"
	"strings"
)

// Action is an operation a permission grants.
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionWrite  Action = "write"
)

// Role identifies who a permission is granted to, e.g. "user:<id>".
type Role string

// UserRole returns the role of a single user.
func UserRole(userID string) Role {
	return Role("user:" + userID)
}

// Permission grants one action on a row to one role.
type Permission struct {
	Action Action `json:"action"`
	Role   Role   `json:"role"`
}

func (p Permission) String() string {
	return string(p.Action) + `("` + string(p.Role) + `")`
}

func Read(role Role) Permission   { return Permission{Action: ActionRead, Role: role} }
func Update(role Role) Permission { return Permission{Action: ActionUpdate, Role: role} }
func Delete(role Role) Permission { return Permission{Action: ActionDelete, Role: role} }
func Write(role Role) Permission  { return Permission{Action: ActionWrite, Role: role} }

// OwnerPermissions returns the read, update, delete and write grants for
// userID.
func OwnerPermissions(userID string) []Permission {
	role := UserRole(userID)
	return []Permission{Read(role), Update(role), Delete(role), Write(role)}
}

// Allows reports whether perms grant action to actor. A write grant implies
// update and delete.
func Allows(perms []Permission, action Action, actor string) bool {
	if actor == "" {
		return false
	}
	role := UserRole(actor)
	for _, p := range perms {
		if p.Role != role {
			continue
		}
		if p.Action == action {
			return true
		}
		if p.Action == ActionWrite && (action == ActionUpdate || action == ActionDelete) {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// WithActor returns a context carrying the id of the user issuing requests.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(userID))
}

// ActorFrom returns the acting user id, or "" when none is set.
func ActorFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
