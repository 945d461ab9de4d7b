// Package storage persists the ledger chain as a JSON file and produces
// compressed snapshot archives for export and backup.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voterchain-backend/models"
)

const chainFile = "chain.json"

type ChainStorage struct {
	basePath string
	mu       sync.Mutex
}

func New(basePath string) (*ChainStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &ChainStorage{basePath: basePath}, nil
}

// SaveChain writes the full chain to disk. The write goes to a temporary
// file first and is atomically renamed so a crash never leaves a truncated
// chain file.
func (s *ChainStorage) SaveChain(blocks []models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(blocks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}

	path := filepath.Join(s.basePath, chainFile)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write chain file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("save chain file: %w", err)
	}
	return nil
}

// LoadChain reads the persisted chain. A missing file returns an empty
// chain, not an error — that is a fresh node.
func (s *ChainStorage) LoadChain() ([]models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.basePath, chainFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chain file: %w", err)
	}

	var blocks []models.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("unmarshal chain: %w", err)
	}
	return blocks, nil
}

// ExportSnapshot writes a zstd-compressed archive of the chain and returns
// its path. Archives are timestamped and never overwritten.
func (s *ChainStorage) ExportSnapshot(blocks []models.Block) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("marshal chain: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", fmt.Errorf("create encoder: %w", err)
	}
	compressed := encoder.EncodeAll(data, nil)
	encoder.Close()

	name := fmt.Sprintf("chain_snapshot_%s.json.zst", time.Now().Format("20060102150405"))
	path := filepath.Join(s.basePath, name)
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a compressed snapshot archive back into a chain.
func (s *ChainStorage) LoadSnapshot(path string) ([]models.Block, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	defer decoder.Close()

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	var blocks []models.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return blocks, nil
}
