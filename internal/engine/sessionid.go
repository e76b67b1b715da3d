// Package engine provides the HTTP handlers and business logic of the
// auction round engine: opening and resolving rounds, validating and
// accepting bids, and projecting bidder- and viewer-facing state.
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// SessionID identifies a bidder session: the auction it belongs to and
// the team it bids for. The wire format is "{auctionID}_{teamID}".
// Authentication of the session itself is the identity provider's job;
// the engine only decomposes and scopes it.
type SessionID struct {
	AuctionID string
	TeamID    string
}

// ErrInvalidSession is returned for malformed session identifiers.
var ErrInvalidSession = errors.New("engine: invalid session id")

// ParseSessionID splits a "{auctionID}_{teamID}" session identifier.
func ParseSessionID(s string) (SessionID, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return SessionID{}, fmt.Errorf("%w: %q (expected {auctionId}_{teamId})", ErrInvalidSession, s)
	}
	return SessionID{AuctionID: parts[0], TeamID: parts[1]}, nil
}

// String re-encodes the session identifier.
func (s SessionID) String() string {
	return s.AuctionID + "_" + s.TeamID
}
