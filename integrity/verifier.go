// Package integrity detects divergence between the external voter record
// store and the hash sealed in the voter's latest ledger transaction.
package integrity

import (
	"log/slog"

	"voterchain-backend/hashing"
	"voterchain-backend/models"
)

// unknownHash is reported when the chain side could not be read at all.
const unknownHash = "UNKNOWN"

// TransactionSource yields a voter's ledger history in chain order. It may
// be the in-process ledger or a remote node behind the HTTP client.
type TransactionSource interface {
	VoterHistory(voterID string) ([]models.Transaction, error)
}

// SourceFunc adapts a plain function to a TransactionSource.
type SourceFunc func(voterID string) ([]models.Transaction, error)

func (f SourceFunc) VoterHistory(voterID string) ([]models.Transaction, error) {
	return f(voterID)
}

type Verifier struct {
	source TransactionSource
}

func NewVerifier(source TransactionSource) *Verifier {
	return &Verifier{source: source}
}

// Verify compares the canonical record against the voter's latest chain
// transaction. simulated relabels a mismatch as a known demonstration
// tamper; the classification logic itself only distinguishes match,
// mismatch and unreachable.
func (v *Verifier) Verify(voterID string, record map[string]string, simulated bool) models.IntegrityReport {
	localHash, err := hashing.Hash(record)
	if err != nil {
		return models.IntegrityReport{
			Status:    models.IntegrityServiceFailed,
			Details:   "failed to hash local record: " + err.Error(),
			ChainHash: unknownHash,
		}
	}

	history, err := v.source.VoterHistory(voterID)
	if err != nil || len(history) == 0 {
		if err != nil {
			slog.Warn("integrity check could not reach the ledger", "voter_id", voterID, "error", err)
		}
		return models.IntegrityReport{
			Status:    models.IntegrityServiceFailed,
			Details:   "ledger unreachable or voter missing on chain",
			LocalHash: localHash,
			ChainHash: unknownHash,
		}
	}

	chainHash := history[len(history)-1].Data.DataHash

	if localHash == chainHash {
		return models.IntegrityReport{
			Status:    models.IntegritySecure,
			Details:   "ledger signature verified",
			LocalHash: localHash,
			ChainHash: chainHash,
		}
	}

	status := models.IntegrityTampered
	if simulated {
		status = models.IntegritySimulated
	}
	slog.Error("integrity mismatch detected",
		"voter_id", voterID, "local_hash", localHash, "chain_hash", chainHash, "simulated", simulated)

	return models.IntegrityReport{
		Status:    status,
		Details:   "local record hash does not match ledger hash",
		LocalHash: localHash,
		ChainHash: chainHash,
	}
}

// VerifyRecord verifies a full record-store row, deriving the canonical
// subset and the simulation flag from the record itself.
func (v *Verifier) VerifyRecord(rec *models.VoterRecord) models.IntegrityReport {
	simulated := rec.Metadata["hacked"] == "true"
	return v.Verify(rec.VoterID, rec.Canonical(), simulated)
}
