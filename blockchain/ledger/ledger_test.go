package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voterchain-backend/hashing"
	"voterchain-backend/models"
	"voterchain-backend/pow"
)

func testLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	return New(pow.NewSolver(2), opts...)
}

func registeredTx(voterID string) models.Transaction {
	return models.Transaction{
		ID:        hashing.TransactionID(voterID, models.EventRegistered),
		Sender:    "MH",
		Recipient: models.NetworkRecipient,
		Data:      models.RegisteredPayload(voterID, "abc123", "MH"),
		Timestamp: time.Now().Unix(),
	}
}

func TestGenesisBlock(t *testing.T) {
	l := testLedger(t)

	chain := l.FullChain()
	if len(chain) != 1 {
		t.Fatalf("expected genesis-only chain, got %d blocks", len(chain))
	}
	genesis := chain[0]
	if genesis.Index != 1 || genesis.PreviousHash != models.GenesisPreviousHash || genesis.Proof != models.GenesisProof {
		t.Errorf("unexpected genesis block: %+v", genesis)
	}
}

func TestSubmitAndSeal(t *testing.T) {
	l := testLedger(t)

	block, err := l.SubmitAndSeal(context.Background(), registeredTx("V1"))
	if err != nil {
		t.Fatal(err)
	}

	if block.Index != 2 {
		t.Errorf("expected block index 2, got %d", block.Index)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(block.Transactions))
	}
	if got := block.Transactions[0].Data.VoterID; got != "V1" {
		t.Errorf("wrong voter id %q", got)
	}
	if !l.CheckIntegrity() {
		t.Error("chain integrity check failed after seal")
	}
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	l := testLedger(t)

	tx := registeredTx("V1")
	tx.Data.VoterID = ""
	if err := l.Submit(tx); !errors.Is(err, models.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestSealBlockBatchesPending(t *testing.T) {
	l := testLedger(t)

	for _, id := range []string{"V1", "V2", "V3"} {
		if err := l.Submit(registeredTx(id)); err != nil {
			t.Fatal(err)
		}
	}

	block, err := l.SealBlock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(block.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(block.Transactions))
	}
	// Submission order must be preserved.
	for i, want := range []string{"V1", "V2", "V3"} {
		if got := block.Transactions[i].Data.VoterID; got != want {
			t.Errorf("transaction %d: got %q, want %q", i, got, want)
		}
	}

	if _, err := l.SealBlock(context.Background()); !errors.Is(err, ErrNoPendingTransactions) {
		t.Errorf("expected ErrNoPendingTransactions, got %v", err)
	}
}

func TestCheckIntegrityDetectsTampering(t *testing.T) {
	l := testLedger(t)

	for _, id := range []string{"V1", "V2"} {
		if _, err := l.SubmitAndSeal(context.Background(), registeredTx(id)); err != nil {
			t.Fatal(err)
		}
	}
	if !l.CheckIntegrity() {
		t.Fatal("fresh chain should be valid")
	}

	// Mutate a sealed transaction behind the ledger's back.
	l.mu.Lock()
	l.chain[1].Transactions[0].Data.DataHash = "tampered"
	l.mu.Unlock()

	if l.CheckIntegrity() {
		t.Error("tampered chain passed the integrity check")
	}
}

func TestCheckIntegrityDetectsForgedProof(t *testing.T) {
	l := testLedger(t)
	if _, err := l.SubmitAndSeal(context.Background(), registeredTx("V1")); err != nil {
		t.Fatal(err)
	}

	l.mu.Lock()
	l.chain[1].Proof = 1
	l.chain[1].CurrentHash = hashing.BlockHash(l.chain[1])
	l.mu.Unlock()

	if l.CheckIntegrity() {
		t.Error("forged proof passed the integrity check")
	}
}

func TestFindTransactionsForChainOrder(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	if _, err := l.SubmitAndSeal(ctx, registeredTx("V1")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.SubmitAndSeal(ctx, registeredTx("V2")); err != nil {
		t.Fatal(err)
	}

	transfer := models.Transaction{
		ID:        hashing.TransactionID("V1", models.EventTransferred),
		Sender:    "MH",
		Recipient: "KA",
		Data:      models.TransferredPayload("V1", "MH", "KA", "def456"),
		Timestamp: time.Now().Unix(),
	}
	if _, err := l.SubmitAndSeal(ctx, transfer); err != nil {
		t.Fatal(err)
	}

	history := l.FindTransactionsFor("V1")
	if len(history) != 2 {
		t.Fatalf("expected 2 transactions for V1, got %d", len(history))
	}
	if history[0].Data.EventType != models.EventRegistered {
		t.Errorf("first event should be REGISTERED, got %s", history[0].Data.EventType)
	}
	if latest := history[len(history)-1]; latest.Data.EventType != models.EventTransferred {
		t.Errorf("latest event should be TRANSFERRED, got %s", latest.Data.EventType)
	}

	if got := l.FindTransactionsFor("missing"); got != nil {
		t.Errorf("expected no transactions for unknown voter, got %d", len(got))
	}
}

func TestConcurrentSealsNeverShareAnIndex(t *testing.T) {
	l := testLedger(t)

	const n = 8
	var wg sync.WaitGroup
	indexes := make(chan uint64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			block, err := l.SubmitAndSeal(context.Background(), registeredTx("V"+string(rune('A'+i))))
			if err != nil {
				t.Errorf("seal: %v", err)
				return
			}
			indexes <- block.Index
		}(i)
	}
	wg.Wait()
	close(indexes)

	seen := make(map[uint64]bool)
	for idx := range indexes {
		if seen[idx] {
			t.Fatalf("two blocks sealed at index %d", idx)
		}
		seen[idx] = true
	}
	if !l.CheckIntegrity() {
		t.Error("chain invalid after concurrent seals")
	}
}

func TestMiningTimeoutKeepsChainClean(t *testing.T) {
	l := New(pow.NewSolver(12), WithMiningTimeout(time.Millisecond))

	_, err := l.SubmitAndSeal(context.Background(), registeredTx("V1"))
	if !errors.Is(err, pow.ErrMiningTimeout) {
		t.Fatalf("expected ErrMiningTimeout, got %v", err)
	}
	if l.Length() != 1 {
		t.Errorf("failed seal must not append a block, chain length %d", l.Length())
	}
	l.mu.RLock()
	pending := l.pool.size()
	l.mu.RUnlock()
	if pending != 0 {
		t.Errorf("failed SubmitAndSeal left %d transactions in the pool", pending)
	}
}

func TestNewFromChainRejectsTamperedChain(t *testing.T) {
	l := testLedger(t)
	if _, err := l.SubmitAndSeal(context.Background(), registeredTx("V1")); err != nil {
		t.Fatal(err)
	}

	blocks := l.FullChain()
	restored, err := NewFromChain(pow.NewSolver(2), blocks)
	if err != nil {
		t.Fatalf("restore of valid chain failed: %v", err)
	}
	if restored.Length() != 2 {
		t.Errorf("restored chain has %d blocks, want 2", restored.Length())
	}

	blocks[1].Transactions[0].Data.State = "XX"
	if _, err := NewFromChain(pow.NewSolver(2), blocks); err == nil {
		t.Error("restore accepted a tampered chain")
	}
}

type recordingStore struct {
	mu    sync.Mutex
	saves int
	last  []models.Block
}

func (r *recordingStore) SaveChain(blocks []models.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.last = blocks
	return nil
}

func TestSealPersistsChain(t *testing.T) {
	store := &recordingStore{}
	l := testLedger(t, WithStore(store))

	if _, err := l.SubmitAndSeal(context.Background(), registeredTx("V1")); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saves != 1 {
		t.Fatalf("expected 1 save, got %d", store.saves)
	}
	if len(store.last) != 2 {
		t.Errorf("persisted chain has %d blocks, want 2", len(store.last))
	}
}
