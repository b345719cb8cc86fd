// Package authz is the single source of truth for "can this actor
// perform this action on this resource". Every resource-touching
// handler routes its decision through here; nothing else in the
// codebase compares roles or owner ids.
package authz

import (
	"github.com/spendhub/spendhub/internal/auth"
	"github.com/spendhub/spendhub/internal/domain/user"
)

// Actor is the authenticated identity performing a request. It is
// derived from verified token claims, never from request body fields.
type Actor struct {
	ID    string
	Email string
	Role  string
}

func (a Actor) IsAdmin() bool {
	return a.Role == user.RoleAdmin
}

// ActorFromClaims builds an Actor out of verified session claims.
func ActorFromClaims(c *auth.Claims) Actor {
	return Actor{
		ID:    c.UserID,
		Email: c.Subject,
		Role:  c.Role,
	}
}

type Action string

const (
	// actions on identity (user) records; target = the user's id
	ActionReadUser   Action = "user.read"
	ActionUpdateUser Action = "user.update"
	ActionDeleteUser Action = "user.delete"
	ActionListUsers  Action = "user.list"
	ActionCreateUser Action = "user.create"

	// actions on owned resources (budgets, expenses); target = ownerId
	ActionReadOwned   Action = "owned.read"
	ActionUpdateOwned Action = "owned.update"
	ActionDeleteOwned Action = "owned.delete"
	ActionCreateOwned Action = "owned.create"
)

type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) Allowed() bool {
	return d == Allowed
}

// Authorize decides whether actor may perform action against the
// resource identified by targetID. For user-record actions targetID is
// the target user's id; for owned resources it is the resource's
// ownerId; list and create actions ignore it.
//
// Rules, first match wins:
//  1. user read/update: self or admin
//  2. user delete: admin deleting someone else, or a non-admin deleting
//     themselves — admin self-delete and non-admin other-delete are both
//     denied
//  3. user list/create: admin only
//  4. owned read/update/delete: owner only, no admin override
//  5. owned create: any authenticated actor
//  6. everything else: denied
func Authorize(actor Actor, action Action, targetID string) Decision {
	switch action {
	case ActionReadUser, ActionUpdateUser:
		if actor.IsAdmin() || actor.ID == targetID {
			return Allowed
		}
		return Denied

	case ActionDeleteUser:
		if actor.IsAdmin() {
			if actor.ID == targetID {
				return Denied // an admin never deletes their own account
			}
			return Allowed
		}
		if actor.ID == targetID {
			return Allowed
		}
		return Denied

	case ActionListUsers, ActionCreateUser:
		if actor.IsAdmin() {
			return Allowed
		}
		return Denied

	case ActionReadOwned, ActionUpdateOwned, ActionDeleteOwned:
		// Ownership is absolute: admins get no override here.
		if actor.ID != "" && actor.ID == targetID {
			return Allowed
		}
		return Denied

	case ActionCreateOwned:
		if actor.ID != "" {
			return Allowed
		}
		return Denied
	}

	return Denied
}

// ForcedOwner returns the owner id every created resource must carry.
// Creation handlers overwrite any client-supplied owner with this value
// so a request body can never assign a resource to someone else.
func ForcedOwner(actor Actor) string {
	return actor.ID
}

// CanChangeRole reports whether actor may change the role field on a
// user record. Role is immutable to non-admins, including on their own
// record.
func CanChangeRole(actor Actor) bool {
	return actor.IsAdmin()
}
