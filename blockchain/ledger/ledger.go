// Package ledger implements the append-only block chain backing the voter
// asset registry. A single mutex guards the chain and the pending
// transaction pool, so concurrent appends can never seal two blocks at the
// same index.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voterchain-backend/hashing"
	"voterchain-backend/models"
	"voterchain-backend/pow"
)

var (
	ErrNoPendingTransactions = errors.New("no pending transactions to seal")
	ErrChainIntegrity        = errors.New("chain integrity check failed")
)

// Store persists the chain after each sealed block. The ledger treats the
// in-memory chain as the source of truth; persistence failures are logged
// and do not roll back an appended block.
type Store interface {
	SaveChain(blocks []models.Block) error
}

type Ledger struct {
	mu     sync.RWMutex
	chain  []models.Block
	pool   transactionPool
	solver *pow.Solver
	store  Store

	// miningTimeout bounds each proof-of-work search.
	miningTimeout time.Duration
}

type Option func(*Ledger)

func WithStore(store Store) Option {
	return func(l *Ledger) { l.store = store }
}

func WithMiningTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.miningTimeout = d }
}

// New creates a ledger containing only the genesis block.
func New(solver *pow.Solver, opts ...Option) *Ledger {
	l := &Ledger{
		solver:        solver,
		miningTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}

	genesis := models.Block{
		Index:        1,
		Timestamp:    time.Now().Unix(),
		Transactions: []models.Transaction{},
		Proof:        models.GenesisProof,
		PreviousHash: models.GenesisPreviousHash,
	}
	genesis.CurrentHash = hashing.BlockHash(genesis)
	l.chain = []models.Block{genesis}

	return l
}

// NewFromChain restores a ledger from a previously persisted chain. The
// chain must be non-empty and structurally valid.
func NewFromChain(solver *pow.Solver, blocks []models.Block, opts ...Option) (*Ledger, error) {
	if len(blocks) == 0 {
		return nil, errors.New("restore: empty chain")
	}

	l := &Ledger{
		solver:        solver,
		miningTimeout: 30 * time.Second,
		chain:         append([]models.Block(nil), blocks...),
	}
	for _, opt := range opts {
		opt(l)
	}

	if !l.CheckIntegrity() {
		return nil, fmt.Errorf("restore: %w", ErrChainIntegrity)
	}
	return l, nil
}

// Submit buffers a transaction for the next sealed block after validating
// its payload.
func (l *Ledger) Submit(tx models.Transaction) error {
	if err := tx.Data.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool.submit(tx)
	return nil
}

// SealBlock mines a new block containing every pending transaction, appends
// it and returns it. Pending transactions survive a failed mining attempt.
func (l *Ledger) SealBlock(ctx context.Context) (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pool.size() == 0 {
		return models.Block{}, ErrNoPendingTransactions
	}
	return l.sealLocked(ctx)
}

// SubmitAndSeal validates a transaction and seals it into a new block in one
// atomic step. This is the reference flow: every submission is immediately
// followed by a seal, one block per call.
func (l *Ledger) SubmitAndSeal(ctx context.Context, tx models.Transaction) (models.Block, error) {
	if err := tx.Data.Validate(); err != nil {
		return models.Block{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pool.submit(tx)
	block, err := l.sealLocked(ctx)
	if err != nil {
		// Drop the transaction we just buffered so a caller retry does not
		// duplicate it.
		l.pool.removeLast()
		return models.Block{}, err
	}
	return block, nil
}

// sealLocked mines and appends a block. Caller holds l.mu.
func (l *Ledger) sealLocked(ctx context.Context) (models.Block, error) {
	last := l.chain[len(l.chain)-1]

	mineCtx, cancel := context.WithTimeout(ctx, l.miningTimeout)
	defer cancel()

	start := time.Now()
	proof, err := l.solver.Solve(mineCtx, last.Proof)
	if err != nil {
		return models.Block{}, fmt.Errorf("seal block %d: %w", last.Index+1, err)
	}

	block := models.Block{
		Index:        last.Index + 1,
		Timestamp:    time.Now().Unix(),
		Transactions: l.pool.drain(),
		Proof:        proof,
		PreviousHash: hashing.BlockHash(last),
	}
	block.CurrentHash = hashing.BlockHash(block)
	l.chain = append(l.chain, block)

	slog.Info("block sealed",
		"index", block.Index,
		"transactions", len(block.Transactions),
		"proof", proof,
		"elapsed", time.Since(start))

	if l.store != nil {
		if err := l.store.SaveChain(append([]models.Block(nil), l.chain...)); err != nil {
			slog.Warn("failed to persist chain", "error", err)
		}
	}

	return block, nil
}

// FullChain returns a read-only snapshot of the chain.
func (l *Ledger) FullChain() []models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := make([]models.Block, len(l.chain))
	copy(chain, l.chain)
	return chain
}

// LastBlock returns the most recently sealed block.
func (l *Ledger) LastBlock() models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// Length returns the number of blocks in the chain.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// CheckIntegrity verifies every adjacent block pair: the hash link must match
// a recomputation of the prior block, and the proof pair must satisfy the
// work predicate. The genesis block bypasses the previous-hash check.
func (l *Ledger) CheckIntegrity() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := 1; i < len(l.chain); i++ {
		prev := l.chain[i-1]
		cur := l.chain[i]

		if cur.PreviousHash != hashing.BlockHash(prev) {
			slog.Error("chain integrity violation: broken hash link",
				"index", cur.Index, "expected", hashing.BlockHash(prev), "actual", cur.PreviousHash)
			return false
		}
		if !l.solver.IsValid(prev.Proof, cur.Proof) {
			slog.Error("chain integrity violation: invalid proof of work",
				"index", cur.Index, "last_proof", prev.Proof, "proof", cur.Proof)
			return false
		}
	}
	return true
}

// FindTransactionsFor collects every sealed transaction for the voter in
// chain order. The last element is the voter's latest event.
func (l *Ledger) FindTransactionsFor(voterID string) []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var history []models.Transaction
	for _, block := range l.chain {
		for _, tx := range block.Transactions {
			if tx.Data.VoterID == voterID {
				history = append(history, tx)
			}
		}
	}
	return history
}
