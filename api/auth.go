package api

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// AdminAuth authenticates admin requests with an ECDSA signature over the
// keccak digest of the request method and path.
type AdminAuth struct {
	key *ecdsa.PrivateKey
}

type adminCredentials struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// LoadOrGenerateAdminKey restores the admin key from the storage directory
// or generates and persists a fresh one.
func LoadOrGenerateAdminKey(storagePath string) (*AdminAuth, error) {
	credPath := filepath.Join(storagePath, "admin_credentials.json")

	if data, err := os.ReadFile(credPath); err == nil {
		var creds adminCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("parse admin credentials: %w", err)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(creds.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("restore admin key: %w", err)
		}
		return &AdminAuth{key: key}, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate admin key: %w", err)
	}

	creds := adminCredentials{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal admin credentials: %w", err)
	}
	if err := os.WriteFile(credPath, data, 0600); err != nil {
		return nil, fmt.Errorf("save admin credentials: %w", err)
	}

	return &AdminAuth{key: key}, nil
}

// Address returns the admin's hex address.
func (a *AdminAuth) Address() string {
	return crypto.PubkeyToAddress(a.key.PublicKey).Hex()
}

// PublicKeyHex returns the admin's uncompressed public key.
func (a *AdminAuth) PublicKeyHex() string {
	return hexutil.Encode(crypto.FromECDSAPub(&a.key.PublicKey))
}

// digest hashes the authenticated portion of a request.
func digest(method, path string) []byte {
	d := sha3.NewLegacyKeccak256()
	d.Write([]byte(method + " " + path))
	return d.Sum(nil)
}

// Sign produces the hex signature an admin client sends for a request.
func (a *AdminAuth) Sign(method, path string) (string, error) {
	sig, err := crypto.Sign(digest(method, path), a.key)
	if err != nil {
		return "", fmt.Errorf("sign admin request: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks that sigHex is the admin's signature over the request.
func (a *AdminAuth) Verify(method, path, sigHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	pub, err := crypto.SigToPub(digest(method, path), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == crypto.PubkeyToAddress(a.key.PublicKey)
}
