package hashing

import (
	"strings"
	"testing"

	"voterchain-backend/models"
)

func TestHashOrderIndependence(t *testing.T) {
	a := map[string]string{"voter_id": "V1", "name": "Jane Doe", "state": "MH"}
	b := map[string]string{"state": "MH", "name": "Jane Doe", "voter_id": "V1"}

	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}

	if ha != hb {
		t.Errorf("logically equal records hashed differently: %s vs %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(ha))
	}
}

func TestHashChangesWithValue(t *testing.T) {
	base := map[string]string{"voter_id": "V1", "address": "12 Hill Road"}
	changed := map[string]string{"voter_id": "V1", "address": "13 Hill Road"}

	h1, _ := Hash(base)
	h2, _ := Hash(changed)
	if h1 == h2 {
		t.Error("field value change did not change the hash")
	}
}

func TestBlockHashExcludesStoredHash(t *testing.T) {
	block := models.Block{
		Index:        2,
		Timestamp:    1700000000,
		PreviousHash: "aa",
		Proof:        35293,
	}

	h1 := BlockHash(block)
	block.CurrentHash = h1
	h2 := BlockHash(block)

	if h1 != h2 {
		t.Error("stored hash leaked into the block digest")
	}
}

func TestTransactionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := TransactionID("V1", models.EventRegistered)
		if seen[id] {
			t.Fatalf("duplicate transaction id %s", id)
		}
		if strings.ContainsAny(id, "ABCDEF") || len(id) != 64 {
			t.Fatalf("unexpected id format %q", id)
		}
		seen[id] = true
	}
}
