package contract

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyRegistered = errors.New("voter already registered")
	ErrNotFound          = errors.New("voter asset not found")
	ErrAlreadyVoted      = errors.New("voter has already voted")
)

// OwnershipMismatchError reports a transfer or vote attempted by a state
// that does not own the voter asset. It names both sides so the caller can
// explain the rejection without exposing the full record.
type OwnershipMismatchError struct {
	VoterID      string
	CurrentOwner string
	Claimed      string
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("ownership mismatch for voter %s: owned by %s, claimed by %s",
		e.VoterID, e.CurrentOwner, e.Claimed)
}

// DoubleVoteError reports a second vote attempt. VotedAt is the timestamp of
// the original vote so callers can report when the first vote occurred.
type DoubleVoteError struct {
	VoterID       string
	VotedAt       time.Time
	TransactionID string
}

func (e *DoubleVoteError) Error() string {
	return fmt.Sprintf("double voting prevented: voter %s already voted at %s",
		e.VoterID, e.VotedAt.Format(time.RFC3339))
}

func (e *DoubleVoteError) Is(target error) bool {
	return target == ErrAlreadyVoted
}
