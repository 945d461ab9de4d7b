package models

import "time"

// VoterRecord is the full row held by the external record store. Only the
// canonical subset (id, name, date of birth, owning state, first address
// line) participates in integrity hashing — contact fields may change
// without raising a tamper alarm.
type VoterRecord struct {
	VoterID      string            `json:"voter_id"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	DateOfBirth  time.Time         `json:"date_of_birth"`
	StateID      string            `json:"state_id"`
	AddressLine1 string            `json:"address_line1"`
	AddressLine2 string            `json:"address_line2,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Email        string            `json:"email,omitempty"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Canonical returns the fixed field subset whose hash is sealed on the chain.
func (v *VoterRecord) Canonical() map[string]string {
	return map[string]string{
		"voter_id": v.VoterID,
		"name":     v.FirstName + " " + v.LastName,
		"dob":      v.DateOfBirth.Format("2006-01-02"),
		"state":    v.StateID,
		"address":  v.AddressLine1,
	}
}
