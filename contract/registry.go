// Package contract implements the voter asset registry, the per-voter state
// machine layered on top of the ledger. Every operation validates against the
// current asset, appends a transaction to the chain, then mutates the asset —
// all under one mutex, so the precondition check and the commit are observed
// as a single atomic step by concurrent callers.
package contract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voterchain-backend/hashing"
	"voterchain-backend/models"
)

// Chain seals registry transactions into the ledger.
type Chain interface {
	SubmitAndSeal(ctx context.Context, tx models.Transaction) (models.Block, error)
}

type Registry struct {
	mu     sync.Mutex
	chain  Chain
	assets map[string]*models.VoterAsset
}

func NewRegistry(chain Chain) *Registry {
	return &Registry{
		chain:  chain,
		assets: make(map[string]*models.VoterAsset),
	}
}

// RegisterResult reports a successful voter registration.
type RegisterResult struct {
	VoterID       string `json:"voter_id"`
	TransactionID string `json:"transaction_id"`
	BlockIndex    uint64 `json:"block_index"`
	OwnerState    string `json:"owner_state"`
}

// TransferResult reports a successful ownership transfer.
type TransferResult struct {
	VoterID       string `json:"voter_id"`
	TransactionID string `json:"transaction_id"`
	BlockIndex    uint64 `json:"block_index"`
	FromState     string `json:"from_state"`
	ToState       string `json:"to_state"`
}

// VoteResult reports a successfully recorded vote.
type VoteResult struct {
	VoterID       string    `json:"voter_id"`
	TransactionID string    `json:"transaction_id"`
	BlockIndex    uint64    `json:"block_index"`
	VotedAt       time.Time `json:"voted_at"`
}

// Register creates the voter asset owned by the registering state and seals a
// REGISTERED transaction. Exactly one asset may exist per voter id.
func (r *Registry) Register(ctx context.Context, voterID, dataHash, stateID string) (*RegisterResult, error) {
	if voterID == "" || dataHash == "" || stateID == "" {
		return nil, fmt.Errorf("%w: register requires voter_id, data_hash and state", models.ErrInvalidPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[voterID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, voterID)
	}

	tx := models.Transaction{
		ID:        hashing.TransactionID(voterID, models.EventRegistered),
		Sender:    stateID,
		Recipient: models.NetworkRecipient,
		Data:      models.RegisteredPayload(voterID, dataHash, stateID),
		Timestamp: time.Now().Unix(),
	}

	block, err := r.chain.SubmitAndSeal(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", voterID, err)
	}

	now := time.Unix(tx.Timestamp, 0).UTC()
	r.assets[voterID] = &models.VoterAsset{
		VoterID:                   voterID,
		CurrentOwnerState:         stateID,
		Status:                    models.StatusActive,
		DataHash:                  dataHash,
		RegistrationTransactionID: tx.ID,
		RegistrationTimestamp:     now,
		LatestTransactionID:       tx.ID,
		LatestEvent:               models.EventRegistered,
		TransferHistory:           []models.TransferRecord{},
	}

	slog.Info("voter registered", "voter_id", voterID, "state", stateID, "block", block.Index)

	return &RegisterResult{
		VoterID:       voterID,
		TransactionID: tx.ID,
		BlockIndex:    block.Index,
		OwnerState:    stateID,
	}, nil
}

// Transfer moves ownership of the voter asset from one state to another.
// The claimed source state must match the asset's current owner, and a voted
// asset can never be transferred.
func (r *Registry) Transfer(ctx context.Context, voterID, fromState, toState, newDataHash string) (*TransferResult, error) {
	if voterID == "" || fromState == "" || toState == "" {
		return nil, fmt.Errorf("%w: transfer requires voter_id, from_state and to_state", models.ErrInvalidPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[voterID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, voterID)
	}
	if asset.CurrentOwnerState != fromState {
		return nil, &OwnershipMismatchError{
			VoterID:      voterID,
			CurrentOwner: asset.CurrentOwnerState,
			Claimed:      fromState,
		}
	}
	if asset.IsVoted {
		return nil, fmt.Errorf("cannot transfer %s: %w", voterID, ErrAlreadyVoted)
	}

	tx := models.Transaction{
		ID:        hashing.TransactionID(voterID, models.EventTransferred),
		Sender:    fromState,
		Recipient: toState,
		Data:      models.TransferredPayload(voterID, fromState, toState, newDataHash),
		Timestamp: time.Now().Unix(),
	}

	block, err := r.chain.SubmitAndSeal(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("transfer %s: %w", voterID, err)
	}

	asset.CurrentOwnerState = toState
	if newDataHash != "" {
		asset.DataHash = newDataHash
	}
	asset.LatestTransactionID = tx.ID
	asset.LatestEvent = models.EventTransferred
	asset.TransferHistory = append(asset.TransferHistory, models.TransferRecord{
		FromState:     fromState,
		ToState:       toState,
		TransactionID: tx.ID,
		Timestamp:     time.Unix(tx.Timestamp, 0).UTC(),
	})

	slog.Info("voter transferred",
		"voter_id", voterID, "from", fromState, "to", toState, "block", block.Index)

	return &TransferResult{
		VoterID:       voterID,
		TransactionID: tx.ID,
		BlockIndex:    block.Index,
		FromState:     fromState,
		ToState:       toState,
	}, nil
}

// MarkVoted latches the asset as voted. Voting is only meaningful under the
// current owning jurisdiction, so stateID must match the asset's owner. The
// latch is one way: a second attempt fails with DoubleVoteError carrying the
// original vote timestamp.
func (r *Registry) MarkVoted(ctx context.Context, voterID, stateID, pollingBooth string) (*VoteResult, error) {
	if voterID == "" || pollingBooth == "" {
		return nil, fmt.Errorf("%w: vote requires voter_id and polling_booth", models.ErrInvalidPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[voterID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, voterID)
	}
	if asset.IsVoted {
		return nil, &DoubleVoteError{
			VoterID:       voterID,
			VotedAt:       asset.VotedTimestamp,
			TransactionID: asset.VotedTransactionID,
		}
	}
	if asset.CurrentOwnerState != stateID {
		return nil, &OwnershipMismatchError{
			VoterID:      voterID,
			CurrentOwner: asset.CurrentOwnerState,
			Claimed:      stateID,
		}
	}

	tx := models.Transaction{
		ID:        hashing.TransactionID(voterID, models.EventVoted),
		Sender:    stateID,
		Recipient: models.NetworkRecipient,
		Data:      models.VotedPayload(voterID, asset.DataHash, pollingBooth),
		Timestamp: time.Now().Unix(),
	}

	block, err := r.chain.SubmitAndSeal(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("mark voted %s: %w", voterID, err)
	}

	votedAt := time.Unix(tx.Timestamp, 0).UTC()
	asset.IsVoted = true
	asset.Status = models.StatusVoted
	asset.VotedTransactionID = tx.ID
	asset.VotedTimestamp = votedAt
	asset.LatestTransactionID = tx.ID
	asset.LatestEvent = models.EventVoted

	slog.Info("vote recorded", "voter_id", voterID, "booth", pollingBooth, "block", block.Index)

	return &VoteResult{
		VoterID:       voterID,
		TransactionID: tx.ID,
		BlockIndex:    block.Index,
		VotedAt:       votedAt,
	}, nil
}

// Asset returns a copy of the voter's asset record.
func (r *Registry) Asset(voterID string) (*models.VoterAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[voterID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, voterID)
	}
	return asset.Clone(), nil
}

// Replay rebuilds the asset map from a restored chain. The chain is the
// source of truth; the in-memory map is derived state.
func (r *Registry) Replay(blocks []models.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assets = make(map[string]*models.VoterAsset)
	for _, block := range blocks {
		for _, tx := range block.Transactions {
			if err := r.applyLocked(tx); err != nil {
				return fmt.Errorf("replay block %d: %w", block.Index, err)
			}
		}
	}
	return nil
}

// applyLocked folds one sealed transaction into the asset map. Chain order
// guarantees preconditions held when the transaction was accepted, so a
// violation here means the chain and the registry have diverged.
func (r *Registry) applyLocked(tx models.Transaction) error {
	ts := time.Unix(tx.Timestamp, 0).UTC()

	switch tx.Data.EventType {
	case models.EventRegistered:
		if _, exists := r.assets[tx.Data.VoterID]; exists {
			return fmt.Errorf("duplicate REGISTERED for %s", tx.Data.VoterID)
		}
		r.assets[tx.Data.VoterID] = &models.VoterAsset{
			VoterID:                   tx.Data.VoterID,
			CurrentOwnerState:         tx.Data.State,
			Status:                    models.StatusActive,
			DataHash:                  tx.Data.DataHash,
			RegistrationTransactionID: tx.ID,
			RegistrationTimestamp:     ts,
			LatestTransactionID:       tx.ID,
			LatestEvent:               models.EventRegistered,
			TransferHistory:           []models.TransferRecord{},
		}

	case models.EventTransferred:
		asset, exists := r.assets[tx.Data.VoterID]
		if !exists {
			return fmt.Errorf("TRANSFERRED before REGISTERED for %s", tx.Data.VoterID)
		}
		asset.CurrentOwnerState = tx.Data.ToState
		if tx.Data.DataHash != "" {
			asset.DataHash = tx.Data.DataHash
		}
		asset.LatestTransactionID = tx.ID
		asset.LatestEvent = models.EventTransferred
		asset.TransferHistory = append(asset.TransferHistory, models.TransferRecord{
			FromState:     tx.Data.FromState,
			ToState:       tx.Data.ToState,
			TransactionID: tx.ID,
			Timestamp:     ts,
		})

	case models.EventVoted:
		asset, exists := r.assets[tx.Data.VoterID]
		if !exists {
			return fmt.Errorf("VOTED before REGISTERED for %s", tx.Data.VoterID)
		}
		asset.IsVoted = true
		asset.Status = models.StatusVoted
		asset.VotedTransactionID = tx.ID
		asset.VotedTimestamp = ts
		asset.LatestTransactionID = tx.ID
		asset.LatestEvent = models.EventVoted

	default:
		return fmt.Errorf("unknown event type %q", tx.Data.EventType)
	}
	return nil
}
