package models

type IntegrityStatus string

const (
	IntegritySecure        IntegrityStatus = "SECURE"
	IntegrityTampered      IntegrityStatus = "TAMPERED"
	IntegritySimulated     IntegrityStatus = "SIMULATED_TAMPERING"
	IntegrityServiceFailed IntegrityStatus = "SERVICE_FAILED"
)

// IntegrityReport is the ephemeral result of comparing the canonical hash of
// a local voter record against the hash sealed in the voter's latest ledger
// transaction. It is computed on demand and never persisted.
type IntegrityReport struct {
	Status    IntegrityStatus `json:"status"`
	Details   string          `json:"details"`
	LocalHash string          `json:"local_hash"`
	ChainHash string          `json:"chain_hash"`
}
