// Package dedup consumes the external biometric decision service. Only the
// match decision crosses this boundary; face-matching internals stay on the
// other side of it.
package dedup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable reports that the decision service could not be reached or
// answered with a non-OK status. Callers must fail closed: no ledger
// mutation may proceed without a decision.
var ErrUnavailable = errors.New("biometric decision service unavailable")

// Decision is the boolean-ish answer the core consumes: which voter the
// sample matched, and how confidently.
type Decision struct {
	MatchedVoterID string  `json:"matched_voter_id"`
	Confidence     float64 `json:"confidence"`
}

// Verifier obtains a match decision for a biometric sample.
type Verifier interface {
	Verify(ctx context.Context, sample []byte, claimedID string) (Decision, error)
}

// Policy is the acceptance threshold applied by callers before acting on a
// decision.
type Policy struct {
	ConfidenceFloor float64
}

// Admit reports whether the decision is strong enough to act on for the
// claimed identity.
func (p Policy) Admit(d Decision, claimedID string) bool {
	return d.MatchedVoterID == claimedID && d.Confidence > p.ConfidenceFloor
}

type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Sample         string `json:"sample"`
	ClaimedVoterID string `json:"claimed_voter_id"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, sample []byte, claimedID string) (Decision, error) {
	body, err := json.Marshal(verifyRequest{
		Sample:         base64.StdEncoding.EncodeToString(sample),
		ClaimedVoterID: claimedID,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/verify", bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return decision, nil
}
