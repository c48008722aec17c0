// Package protocol holds the identity and error vocabulary shared by every
// component of the adjudication engine.
package protocol

import "errors"

// Address is an authenticated caller identity. The transport layer is
// responsible for verifying it; the engine treats it as opaque.
type Address string

// Zero is the absent address.
const Zero Address = ""

// Role names a level of privilege required by an operation.
type Role int

const (
	// RoleOwner is the protocol owner ("CEO").
	RoleOwner Role = iota
	// RoleSuperAdmin is the owner or an active super-admin processor.
	RoleSuperAdmin
	// RoleActiveProcessor is any processor with the active flag set.
	RoleActiveProcessor
)

// Failure taxonomy. Every engine operation returns nil or wraps exactly one
// of these; callers dispatch with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrDuplicateClaim    = errors.New("a live claim already exists for this submitter")
	ErrInvalidState      = errors.New("operation not permitted in current state")
	ErrQueueDisabled     = errors.New("claim queue is disabled")
	ErrQueueFull         = errors.New("claim queue is full")
	ErrPreconditionUnmet = errors.New("required normalization has not been performed")
	ErrAlreadyAssigned   = errors.New("claim is already assigned to a processor")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
	ErrSameFlagState     = errors.New("flag is already in the requested state")
)
