package models

import "time"

type AssetStatus string

const (
	StatusActive AssetStatus = "ACTIVE"
	StatusVoted  AssetStatus = "VOTED"
	StatusMoved  AssetStatus = "MOVED"
)

// VoterAsset is the per-voter ownership and voting record layered above the
// raw ledger. One asset exists per voter id; it is created by the first
// accepted REGISTERED transaction and mutated in place afterwards, never
// deleted. IsVoted latches true exactly once.
type VoterAsset struct {
	VoterID                   string           `json:"voter_id"`
	CurrentOwnerState         string           `json:"current_owner_state"`
	Status                    AssetStatus      `json:"status"`
	DataHash                  string           `json:"data_hash"`
	RegistrationTransactionID string           `json:"registration_transaction_id"`
	RegistrationTimestamp     time.Time        `json:"registration_timestamp"`
	LatestTransactionID       string           `json:"latest_transaction_id"`
	LatestEvent               string           `json:"latest_event"`
	IsVoted                   bool             `json:"is_voted"`
	VotedTransactionID        string           `json:"voted_transaction_id,omitempty"`
	VotedTimestamp            time.Time        `json:"voted_timestamp,omitempty"`
	TransferHistory           []TransferRecord `json:"transfer_history"`
}

type TransferRecord struct {
	FromState     string    `json:"from_state"`
	ToState       string    `json:"to_state"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Clone returns a deep copy so registry callers cannot alias internal state.
func (a *VoterAsset) Clone() *VoterAsset {
	cp := *a
	cp.TransferHistory = make([]TransferRecord, len(a.TransferHistory))
	copy(cp.TransferHistory, a.TransferHistory)
	return &cp
}
