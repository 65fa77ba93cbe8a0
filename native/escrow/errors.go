package escrow

import "errors"

var (
	// ErrInvalidOrder is returned for structurally malformed issuance requests.
	ErrInvalidOrder = errors.New("escrow: invalid order")
	// ErrDuplicateOrder is returned when the order identity already has a record.
	ErrDuplicateOrder = errors.New("escrow: duplicate order")
	// ErrUnknownOrder is returned by lookups against identities never issued.
	ErrUnknownOrder = errors.New("escrow: unknown order")
	// ErrAlreadySettled is returned when settling an identity a second time.
	ErrAlreadySettled = errors.New("escrow: already settled")

	errNilState        = errors.New("escrow engine: state not configured")
	errNilCollaborator = errors.New("escrow engine: collaborators not configured")
)
