// Package hashing provides the canonical serialization and content hashing
// shared by ledger sealing and integrity verification. Both sides must use
// it unmodified or tamper detection silently breaks.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voterchain-backend/models"
)

// Canonicalize serializes a record with keys in lexicographic order.
// encoding/json sorts map keys, which gives the deterministic byte form
// directly; values are pre-stringified by the caller (dates as ISO-8601).
func Canonicalize(record map[string]string) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("canonicalize record: %w", err)
	}
	return data, nil
}

// Hash returns the hex sha256 digest of the record's canonical form.
func Hash(record map[string]string) (string, error) {
	data, err := Canonicalize(record)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// BlockHash hashes a block's canonical fields. The stored hash is blanked
// first so the digest covers exactly what the chain links verify.
func BlockHash(b models.Block) string {
	b.CurrentHash = ""

	data, err := json.Marshal(b)
	if err != nil {
		// Block contains only marshalable fields; this cannot happen for
		// a well-formed block.
		return ""
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TransactionID generates a unique transaction identifier bound to the voter
// and event type.
func TransactionID(voterID, eventType string) string {
	seed := fmt.Sprintf("%s:%s:%d:%s", voterID, eventType, time.Now().UnixNano(), uuid.New().String())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
