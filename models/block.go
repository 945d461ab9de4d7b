package models

// GenesisPreviousHash is the previous-hash sentinel carried by the genesis
// block. GenesisProof seeds the proof-of-work chain.
const (
	GenesisPreviousHash = "1"
	GenesisProof        = 100
)

type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        int64         `json:"proof"`
	PreviousHash string        `json:"previous_hash"`
	CurrentHash  string        `json:"current_hash"`
}
