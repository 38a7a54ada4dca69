package friend

import "errors"

// Operation errors. Handlers translate these into HTTP status codes;
// the service itself never deals in status codes.
var (
	// ErrUnknownAddressee means the proposed counterpart does not exist.
	ErrUnknownAddressee = errors.New("friend: addressee does not exist")

	// ErrSelfInvitation means a user tried to invite themselves.
	ErrSelfInvitation = errors.New("friend: cannot invite yourself")

	// ErrConflict means an active (pending or accepted) relationship
	// already exists for the pair.
	ErrConflict = errors.New("friend: relationship already exists")

	// ErrNotFound means the referenced invitation does not exist.
	ErrNotFound = errors.New("friend: invitation not found")

	// ErrForbidden means the acting user is not the addressee of the
	// referenced invitation.
	ErrForbidden = errors.New("friend: not the addressee of this invitation")

	// ErrInvalidState means the invitation is not pending, so it can no
	// longer be resolved.
	ErrInvalidState = errors.New("friend: invitation is not pending")
)
