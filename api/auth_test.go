package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestAdminKeyPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateAdminKey(dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "admin_credentials.json")); err != nil {
		t.Fatalf("credentials file not written: %v", err)
	}

	second, err := LoadOrGenerateAdminKey(dir)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if first.Address() != second.Address() {
		t.Fatalf("address changed across restart: %s vs %s", first.Address(), second.Address())
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	auth, err := LoadOrGenerateAdminKey(t.TempDir())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	sig, err := auth.Sign(http.MethodPost, "/api/admin/integrity-check")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !auth.Verify(http.MethodPost, "/api/admin/integrity-check", sig) {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifyRejectsReplayedSignature(t *testing.T) {
	auth, err := LoadOrGenerateAdminKey(t.TempDir())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	sig, err := auth.Sign(http.MethodPost, "/api/admin/snapshot")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if auth.Verify(http.MethodPost, "/api/admin/tamper/v1", sig) {
		t.Fatal("signature for one path accepted on another")
	}
	if auth.Verify(http.MethodGet, "/api/admin/snapshot", sig) {
		t.Fatal("signature for one method accepted on another")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	auth, err := LoadOrGenerateAdminKey(t.TempDir())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if auth.Verify(http.MethodGet, "/chain", "not-hex") {
		t.Fatal("garbage signature accepted")
	}
	if auth.Verify(http.MethodGet, "/chain", "0x00") {
		t.Fatal("truncated signature accepted")
	}
}
