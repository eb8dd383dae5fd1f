// Package authz holds the side-effect free decisions behind every
// state-changing complaint and login operation.
package authz

import (
	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/user"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role user.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// IsOwner reports whether actor owns a complaint with the given owner
// reference. Anonymous complaints (nil owner) have no owner.
func IsOwner(a Actor, owner *uuid.UUID) bool {
	return owner != nil && a.ID != uuid.Nil && *owner == a.ID
}

// CanViewComplaint is the listing rule: owners see their own complaints and
// admins see every complaint.
func CanViewComplaint(a Actor, owner *uuid.UUID) bool {
	return IsOwner(a, owner) || a.IsAdmin()
}

// CanFetchComplaint is the single-record rule. Unlike CanViewComplaint it
// does not exempt admins: only the owner may fetch a complaint by id.
func CanFetchComplaint(a Actor, owner *uuid.UUID) bool {
	return IsOwner(a, owner)
}

// CanMutateComplaint gates update and delete. Ownership is the sole criterion.
func CanMutateComplaint(a Actor, owner *uuid.UUID) bool {
	return IsOwner(a, owner)
}

// CanSetStatus gates resolve and reject. Ownership is irrelevant.
func CanSetStatus(a Actor) bool {
	return a.IsAdmin()
}

// CanListAllComplaints gates the admin listing.
func CanListAllComplaints(a Actor) bool {
	return a.IsAdmin()
}

// IsVerifiedForLogin treats admins as verified regardless of the stored flag.
func IsVerifiedForLogin(u *user.User) bool {
	return u != nil && (u.Role.IsAdmin() || u.IsVerified)
}
