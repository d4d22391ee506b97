// Package wallet manages the local signing identity: an Ed25519 keypair in
// wallet.json under the base directory. The same keypair roots both halves of
// an agent's identity, the wallet pubkey used for addressing and the X25519
// exchange keys used to seal content.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iamoberlin/chorus/internal/crypto"
	"github.com/iamoberlin/chorus/internal/prayer"
)

const fileName = "wallet.json"

// Wallet is the local signing identity.
type Wallet struct {
	signing ed25519.PrivateKey
}

// walletFile is the on-disk JSON shape. The public key is redundant with the
// seed; it is stored so the file is self-describing and so load can detect
// corruption.
type walletFile struct {
	Seed      string `json:"seed"`
	PublicKey string `json:"public_key"`
}

// Path returns the wallet file location under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, fileName)
}

// Create generates a fresh identity at baseDir/wallet.json. It refuses to
// overwrite an existing wallet; losing a key means losing the agent.
func Create(baseDir string) (*Wallet, error) {
	path := Path(baseDir)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("wallet already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}

	data, err := json.MarshalIndent(walletFile{
		Seed:      hex.EncodeToString(priv.Seed()),
		PublicKey: hex.EncodeToString(pub),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallet: %w", err)
	}
	data = append(data, '\n')

	// Write the temp file with final permissions, then rename into place.
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write wallet: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to finalize wallet: %w", err)
	}

	return &Wallet{signing: priv}, nil
}

// Load reads the identity from baseDir/wallet.json.
func Load(baseDir string) (*Wallet, error) {
	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		return nil, err
	}

	var f walletFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse wallet: %w", err)
	}

	seed, err := hex.DecodeString(f.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet seed encoding: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid wallet seed length: got %d bytes, want %d", len(seed), ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	if got := hex.EncodeToString(priv.Public().(ed25519.PublicKey)); got != f.PublicKey {
		return nil, fmt.Errorf("wallet public key does not match seed (file corrupted?)")
	}

	return &Wallet{signing: priv}, nil
}

// LoadOrCreate loads the wallet, generating one on first use.
func LoadOrCreate(baseDir string) (*Wallet, error) {
	w, err := Load(baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return Create(baseDir)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Pubkey returns the wallet identity used for addressing.
func (w *Wallet) Pubkey() prayer.Pubkey {
	var k prayer.Pubkey
	copy(k[:], w.signing.Public().(ed25519.PublicKey))
	return k
}

// ExchangeKeys derives the wallet's X25519 keypair for sealing and opening
// content. The derivation is deterministic, so the published exchange key is
// permanently bound to this wallet.
func (w *Wallet) ExchangeKeys() (crypto.PublicKey, crypto.PrivateKey) {
	return crypto.DeriveKeyPair(w.signing)
}
