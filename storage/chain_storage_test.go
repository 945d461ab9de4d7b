package storage

import (
	"os"
	"path/filepath"
	"testing"

	"voterchain-backend/models"
)

func sampleChain() []models.Block {
	return []models.Block{
		{Index: 1, Timestamp: 1700000000, Proof: models.GenesisProof, PreviousHash: models.GenesisPreviousHash, CurrentHash: "aa"},
		{Index: 2, Timestamp: 1700000100, Proof: 35293, PreviousHash: "aa", CurrentHash: "bb",
			Transactions: []models.Transaction{{
				ID:        "tx-1",
				Sender:    "MH",
				Recipient: models.NetworkRecipient,
				Data:      models.RegisteredPayload("V1", "hash1", "MH"),
				Timestamp: 1700000099,
			}}},
	}
}

func TestSaveAndLoadChain(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SaveChain(sampleChain()); err != nil {
		t.Fatal(err)
	}

	blocks, err := s.LoadChain()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[1].Transactions[0].Data.VoterID != "V1" {
		t.Errorf("transaction payload lost in round trip: %+v", blocks[1].Transactions[0])
	}
}

func TestLoadChainMissingFile(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := s.LoadChain()
	if err != nil {
		t.Fatal(err)
	}
	if blocks != nil {
		t.Errorf("fresh node should load an empty chain, got %d blocks", len(blocks))
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChain(sampleChain()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, chainFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary chain file left behind")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.ExportSnapshot(sampleChain())
	if err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("snapshot archive is empty")
	}

	blocks, err := s.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 || blocks[1].CurrentHash != "bb" {
		t.Errorf("snapshot round trip mismatch: %+v", blocks)
	}
}
