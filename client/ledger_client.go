// Package client talks to a remote ledger node over HTTP. A transport
// failure is always surfaced as ErrServiceUnavailable — the client never
// fabricates a committed transaction for an unreachable node.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voterchain-backend/models"
)

var (
	ErrServiceUnavailable = errors.New("ledger node unreachable")
	ErrVoterNotOnChain    = errors.New("voter not found on chain")
)

type LedgerClient struct {
	nodeURL string
	client  *http.Client
}

func New(nodeURL string, timeout time.Duration) *LedgerClient {
	return &LedgerClient{
		nodeURL: nodeURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// TxReceipt is the node's acknowledgement of a sealed transaction.
type TxReceipt struct {
	Message         string `json:"message"`
	BlockIndex      uint64 `json:"block_index"`
	TransactionHash string `json:"transaction_hash"`
}

// ChainSnapshot is the full chain as reported by the node.
type ChainSnapshot struct {
	Chain   []models.Block `json:"chain"`
	Length  int            `json:"length"`
	IsValid bool           `json:"is_valid"`
}

// VoterChainRecord is a voter's transaction history with the latest event
// split out.
type VoterChainRecord struct {
	History []models.Transaction `json:"history"`
	Latest  models.Transaction   `json:"latest"`
}

// CreateTransaction submits a transaction for immediate sealing. The node
// either commits it and returns a receipt, or the caller gets an error —
// there is no success default.
func (c *LedgerClient) CreateTransaction(ctx context.Context, sender, recipient string, data models.TransactionPayload) (*TxReceipt, error) {
	body, err := json.Marshal(map[string]any{
		"sender":    sender,
		"recipient": recipient,
		"data":      data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+"/transactions/new", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build transaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: node rejected transaction with status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var receipt TxReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("%w: decode receipt: %v", ErrServiceUnavailable, err)
	}
	return &receipt, nil
}

// VerifyVoterHistory fetches the voter's full chain record.
func (c *LedgerClient) VerifyVoterHistory(ctx context.Context, voterID string) (*VoterChainRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL+"/verify/"+voterID, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrVoterNotOnChain, voterID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var record VoterChainRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: decode record: %v", ErrServiceUnavailable, err)
	}
	return &record, nil
}

// VoterHistory satisfies the integrity verifier's TransactionSource.
func (c *LedgerClient) VoterHistory(voterID string) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()

	record, err := c.VerifyVoterHistory(ctx, voterID)
	if err != nil {
		if errors.Is(err, ErrVoterNotOnChain) {
			return nil, nil
		}
		return nil, err
	}
	return record.History, nil
}

// FullChain fetches the entire chain with its live validity flag.
func (c *LedgerClient) FullChain(ctx context.Context) (*ChainSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL+"/chain", nil)
	if err != nil {
		return nil, fmt.Errorf("build chain request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var snapshot ChainSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode chain: %v", ErrServiceUnavailable, err)
	}
	return &snapshot, nil
}
