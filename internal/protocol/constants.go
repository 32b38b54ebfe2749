// Package protocol defines constants used across the broker wire protocol.
package protocol

// Role is the wire representation of a document's sync role.
type Role string

const (
	RoleOwner    Role = "Owner"
	RoleFollower Role = "Follower"
)

// OwnershipStatus is the wire representation of a TakeOwnership result.
type OwnershipStatus string

const (
	OwnershipGranted OwnershipStatus = "Granted"
	OwnershipDenied  OwnershipStatus = "Denied"
)

// OwnerConfirmStatus is the wire representation of an OwnerConfirm result.
type OwnerConfirmStatus string

const (
	OwnerConfirmConfirmed    OwnerConfirmStatus = "Confirmed"
	OwnerConfirmNeedSnapshot OwnerConfirmStatus = "NeedSnapshot"
)
