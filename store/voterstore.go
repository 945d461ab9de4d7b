// Package store implements the external voter record store backed by Pebble.
// This is the local database the integrity verifier audits against the
// ledger; the core writes to it only after a ledger append has succeeded.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"voterchain-backend/models"
)

var ErrRecordNotFound = errors.New("voter record not found")

const recordPrefix = "voter/"

type VoterStore struct {
	db *pebble.DB
}

// Open opens (or creates) the record store at the given path.
func Open(path string) (*VoterStore, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open voter store: %w", err)
	}
	return &VoterStore{db: db}, nil
}

func recordKey(voterID string) []byte {
	return []byte(recordPrefix + voterID)
}

// Put stores a full voter record, overwriting any existing row.
func (s *VoterStore) Put(rec *models.VoterRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal voter record: %w", err)
	}
	if err := s.db.Set(recordKey(rec.VoterID), data, pebble.Sync); err != nil {
		return fmt.Errorf("store voter record: %w", err)
	}
	return nil
}

// ReadCanonicalRecord returns the stored record for a voter.
func (s *VoterStore) ReadCanonicalRecord(voterID string) (*models.VoterRecord, error) {
	value, closer, err := s.db.Get(recordKey(voterID))
	if err == pebble.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, voterID)
	}
	if err != nil {
		return nil, fmt.Errorf("read voter record: %w", err)
	}
	defer closer.Close()

	var rec models.VoterRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decode voter record: %w", err)
	}
	return &rec, nil
}

// WriteStatus updates the voter's status and merges metadata. Callers invoke
// this only after the corresponding ledger append has been accepted.
func (s *VoterStore) WriteStatus(voterID, status string, metadata map[string]string) error {
	rec, err := s.ReadCanonicalRecord(voterID)
	if err != nil {
		return err
	}

	rec.Status = status
	if len(metadata) > 0 && rec.Metadata == nil {
		rec.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		rec.Metadata[k] = v
	}
	return s.Put(rec)
}

// Tamper mutates the record's address without any ledger transaction, used
// by the admin attack simulation. The record is marked so the integrity
// verifier can label the mismatch as a known demonstration.
func (s *VoterStore) Tamper(voterID, newAddress string) error {
	rec, err := s.ReadCanonicalRecord(voterID)
	if err != nil {
		return err
	}

	if rec.Metadata == nil {
		rec.Metadata = make(map[string]string)
	}
	rec.Metadata["hacked"] = "true"
	rec.Metadata["original_address"] = rec.AddressLine1
	rec.AddressLine1 = newAddress
	return s.Put(rec)
}

// All visits every stored record in key order.
func (s *VoterStore) All(fn func(rec *models.VoterRecord) error) error {
	prefix := []byte(recordPrefix)
	upper := []byte(recordPrefix)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		var rec models.VoterRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode voter record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *VoterStore) Close() error {
	return s.db.Close()
}
