package models

import (
	"errors"
	"fmt"
)

// Event types recorded on the chain for a voter asset.
const (
	EventRegistered  = "REGISTERED"
	EventTransferred = "TRANSFERRED"
	EventVoted       = "VOTED"
)

// NetworkRecipient marks transactions addressed to the ledger network itself
// rather than to a specific state node.
const NetworkRecipient = "network"

var ErrInvalidPayload = errors.New("invalid transaction payload")

type Transaction struct {
	ID        string             `json:"id"`
	Sender    string             `json:"sender"`
	Recipient string             `json:"recipient"`
	Data      TransactionPayload `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

// TransactionPayload is the event record sealed into a block. EventType tags
// the variant; only the fields belonging to that variant are set. Use the
// constructors below rather than filling the struct by hand.
type TransactionPayload struct {
	EventType    string `json:"event_type"`
	VoterID      string `json:"voter_id"`
	DataHash     string `json:"data_hash,omitempty"`
	State        string `json:"state,omitempty"`
	FromState    string `json:"from_state,omitempty"`
	ToState      string `json:"to_state,omitempty"`
	PollingBooth string `json:"polling_booth,omitempty"`
}

func RegisteredPayload(voterID, dataHash, state string) TransactionPayload {
	return TransactionPayload{
		EventType: EventRegistered,
		VoterID:   voterID,
		DataHash:  dataHash,
		State:     state,
	}
}

func TransferredPayload(voterID, fromState, toState, dataHash string) TransactionPayload {
	return TransactionPayload{
		EventType: EventTransferred,
		VoterID:   voterID,
		DataHash:  dataHash,
		FromState: fromState,
		ToState:   toState,
	}
}

func VotedPayload(voterID, dataHash, pollingBooth string) TransactionPayload {
	return TransactionPayload{
		EventType:    EventVoted,
		VoterID:      voterID,
		DataHash:     dataHash,
		PollingBooth: pollingBooth,
	}
}

// Validate checks that the payload carries its variant's required fields.
func (p TransactionPayload) Validate() error {
	if p.VoterID == "" {
		return fmt.Errorf("%w: missing voter_id", ErrInvalidPayload)
	}
	switch p.EventType {
	case EventRegistered:
		if p.DataHash == "" || p.State == "" {
			return fmt.Errorf("%w: REGISTERED requires data_hash and state", ErrInvalidPayload)
		}
	case EventTransferred:
		if p.FromState == "" || p.ToState == "" {
			return fmt.Errorf("%w: TRANSFERRED requires from_state and to_state", ErrInvalidPayload)
		}
	case EventVoted:
		if p.PollingBooth == "" {
			return fmt.Errorf("%w: VOTED requires polling_booth", ErrInvalidPayload)
		}
	case "":
		return fmt.Errorf("%w: missing event_type", ErrInvalidPayload)
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidPayload, p.EventType)
	}
	return nil
}
