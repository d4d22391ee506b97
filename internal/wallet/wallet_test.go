package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"testing"
)

func TestCreateThenLoad(t *testing.T) {
	dir := t.TempDir()

	created, err := Create(dir)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if created.Pubkey() != loaded.Pubkey() {
		t.Errorf("identity changed across reload: %s vs %s", created.Pubkey().Short(), loaded.Pubkey().Short())
	}
	if created.Pubkey().IsZero() {
		t.Error("generated a zero pubkey")
	}

	cPub, _ := created.ExchangeKeys()
	lPub, _ := loaded.ExchangeKeys()
	if cPub != lPub {
		t.Error("exchange key not stable across reload")
	}
	if cPub.IsZero() {
		t.Error("derived a zero exchange key")
	}
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(dir); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := Create(dir)
	if !errors.Is(err, os.ErrExist) {
		t.Errorf("second Create error = %v, want ErrExist", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestLoadOrCreate(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	second, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if first.Pubkey() != second.Pubkey() {
		t.Error("LoadOrCreate generated a second identity")
	}
}

func TestWalletFilePermissions(t *testing.T) {
	dir := t.TempDir()

	if _, err := Create(dir); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	info, err := os.Stat(Path(dir))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("wallet.json perm = %o, want 0600", perm)
	}
}

func TestLoadRejectsCorruption(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A seed of the wrong length.
	if err := os.WriteFile(Path(dir), []byte(`{"seed":"00","public_key":"ff"}`), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("truncated seed loaded")
	}

	// A valid-length seed whose stored public key does not match.
	seed := make([]byte, 32)
	mismatched, err := json.Marshal(map[string]string{
		"seed":       hex.EncodeToString(seed),
		"public_key": w.Pubkey().String(),
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.WriteFile(Path(dir), mismatched, 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("mismatched public key loaded")
	}
}
