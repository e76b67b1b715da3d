package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-checkable classification of an engine error.
// Every validation failure is returned synchronously with a kind and a
// human-readable message; the HTTP layer maps kinds to status codes and
// never retries on the caller's behalf.
type ErrorKind string

const (
	// KindNotFound — entity absent or not matching the requested scope.
	KindNotFound ErrorKind = "not_found"

	// KindInvalidState — operation not legal given current lifecycle
	// status (auction not live, round not open, bidding window expired).
	KindInvalidState ErrorKind = "invalid_state"

	// KindInvalidBid — value-level rejection (below minimum, above
	// budget, stale increment).
	KindInvalidBid ErrorKind = "invalid_bid"

	// KindUnauthorized — caller lacks standing to bid for this team.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindInternal — storage or broadcast failure.
	KindInternal ErrorKind = "internal"
)

// Error carries an ErrorKind alongside the bidder-facing message, so the
// client sees the specific rejection reason ("minimum bid is 120") rather
// than a generic failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds a KindInvalidState error.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// InvalidBidf builds a KindInvalidBid error.
func InvalidBidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidBid, Message: fmt.Sprintf(format, args...)}
}

// Unauthorizedf builds a KindUnauthorized error.
func Unauthorizedf(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a storage or broadcast failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Storage-level sentinels surfaced by Store implementations.
var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSequenceConflict signals that another open-outcry bid claimed
	// the expected sequence number first. The engine retries once with a
	// refetch; it is a race the client can resolve, not a hard failure.
	ErrSequenceConflict = errors.New("sequence number conflict")

	// ErrDuplicateResult signals an AuctionResult already exists for the
	// player. Results are append-only and unique per (auction, player).
	ErrDuplicateResult = errors.New("result already recorded for player")

	// ErrRoundConflict signals another round is already OPEN for the
	// auction.
	ErrRoundConflict = errors.New("another round is open for auction")
)
