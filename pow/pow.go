// Package pow implements the proof-of-work search that seals ledger blocks.
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DefaultDifficulty is the number of leading zero hex characters a valid
// proof digest must carry.
const DefaultDifficulty = 4

// ErrMiningTimeout reports that the bounded nonce search hit its deadline
// before finding a valid proof.
var ErrMiningTimeout = errors.New("proof-of-work search exceeded deadline")

// checkInterval controls how often the search polls for cancellation.
const checkInterval = 4096

type Solver struct {
	difficulty int
	target     string
}

func NewSolver(difficulty int) *Solver {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	return &Solver{
		difficulty: difficulty,
		target:     strings.Repeat("0", difficulty),
	}
}

// IsValid reports whether hashing the decimal concatenation of lastProof and
// proof yields a digest with the required zero prefix.
func (s *Solver) IsValid(lastProof, proof int64) bool {
	guess := fmt.Sprintf("%d%d", lastProof, proof)
	sum := sha256.Sum256([]byte(guess))
	return strings.HasPrefix(hex.EncodeToString(sum[:]), s.target)
}

// Solve searches for the smallest non-negative proof valid against
// lastProof. The search is brute force with no shortcut; ctx bounds it so a
// caller never blocks forever.
func (s *Solver) Solve(ctx context.Context, lastProof int64) (int64, error) {
	for proof := int64(0); ; proof++ {
		if proof%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return 0, fmt.Errorf("%w: %v", ErrMiningTimeout, ctx.Err())
			default:
			}
		}
		if s.IsValid(lastProof, proof) {
			return proof, nil
		}
	}
}

// Difficulty returns the configured zero-prefix length.
func (s *Solver) Difficulty() int {
	return s.difficulty
}
