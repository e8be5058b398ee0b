package service

import "github.com/google/uuid"

// Owned is implemented by resources that belong to a single user.
type Owned interface {
	OwnerID() uuid.UUID
}

// AssertOwner returns NotFound when resource is nil and Forbidden when it is
// owned by someone other than callerID. kind names the resource in messages.
func AssertOwner[T any, P interface {
	*T
	Owned
}](resource P, callerID uuid.UUID, kind string) error {
	if resource == nil {
		return NotFound("%s not found", kind)
	}
	if resource.OwnerID() != callerID {
		return Forbidden("not the owner of this %s", kind)
	}
	return nil
}
