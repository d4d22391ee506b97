// Package envelope is the agent-side sealing glue shared by the CLI and MCP
// surfaces. It resolves published exchange keys, seals plaintext to a
// recipient, opens payloads addressed to the local wallet, and keeps the
// plaintext cache in step with whatever it decrypts. The chain never sees
// plaintext; everything here happens before a write or after a read.
package envelope

import (
	"context"
	"crypto/sha256"
	stderrors "errors"

	"github.com/iamoberlin/chorus/internal/cache"
	"github.com/iamoberlin/chorus/internal/crypto"
	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/ops"
	"github.com/iamoberlin/chorus/internal/prayer"
	"github.com/iamoberlin/chorus/internal/wallet"
)

// HashText commits to a plaintext.
func HashText(s string) prayer.Hash {
	return prayer.Hash(sha256.Sum256([]byte(s)))
}

// RecipientKey looks up the published exchange key of a registered agent.
func RecipientKey(ctx context.Context, store ledger.Store, w prayer.Pubkey) (crypto.PublicKey, error) {
	out, err := ops.Agent(ctx, store, ops.AgentInput{Wallet: w})
	if err != nil {
		return crypto.PublicKey{}, err
	}
	return out.Agent.EncryptionKey, nil
}

// LiveClaimers returns the wallet keys holding live claims on a prayer.
func LiveClaimers(ctx context.Context, store ledger.Store, prayerID uint64) ([]prayer.Pubkey, error) {
	out, err := ops.Show(ctx, store, ops.ShowInput{PrayerID: prayerID})
	if err != nil {
		return nil, err
	}
	keys := make([]prayer.Pubkey, 0, len(out.Claims))
	for _, c := range out.Claims {
		keys = append(keys, c.Claimer)
	}
	return keys, nil
}

// SealFor seals plaintext to a recipient's published exchange key. Oversized
// plaintext surfaces as PayloadTooLarge before anything touches the chain.
func SealFor(ctx context.Context, store ledger.Store, w *wallet.Wallet, recipient prayer.Pubkey, plaintext string) ([]byte, error) {
	recipientKey, err := RecipientKey(ctx, store, recipient)
	if err != nil {
		return nil, err
	}
	_, senderPriv := w.ExchangeKeys()
	sealed, err := crypto.Seal([]byte(plaintext), recipientKey, senderPriv)
	if err != nil {
		if stderrors.Is(err, crypto.ErrMessageTooLarge) {
			return nil, errors.NewPayloadTooLarge(crypto.MaxPlaintext, len(plaintext))
		}
		return nil, errors.NewInternal(err)
	}
	return sealed, nil
}

// Reveal produces whatever plaintext the local agent can for a prayer:
// cached text first, then sealed payloads addressed to the local wallet.
// Anything decrypted is written back to the cache. Failures to decrypt are
// silent; a blob sealed to someone else is simply not ours to read.
func Reveal(ctx context.Context, store ledger.Store, w *wallet.Wallet, c *cache.Cache, shown *ops.ShowOutput) (content, answer string) {
	if entry, err := c.Get(ctx, shown.Prayer.ID); err == nil && entry != nil {
		content = entry.Content
		answer = entry.Answer
	}

	local := w.Pubkey()
	_, localPriv := w.ExchangeKeys()

	// The sealed answer is addressed to the requester.
	if answer == "" && len(shown.Prayer.EncryptedAnswer) > 0 &&
		shown.Prayer.Requester == local && shown.Prayer.Answerer != nil {
		if sender, err := RecipientKey(ctx, store, *shown.Prayer.Answerer); err == nil {
			if plaintext, err := crypto.Open(shown.Prayer.EncryptedAnswer, sender, localPriv); err == nil {
				answer = string(plaintext)
				_ = c.PutAnswer(ctx, shown.Prayer.ID, answer)
			}
		}
	}

	// Delivered content is sealed to each claimer individually.
	if content == "" {
		for _, claim := range shown.Claims {
			if claim.Claimer != local || len(claim.EncryptedContent) == 0 {
				continue
			}
			if sender, err := RecipientKey(ctx, store, shown.Prayer.Requester); err == nil {
				if plaintext, err := crypto.Open(claim.EncryptedContent, sender, localPriv); err == nil {
					content = string(plaintext)
					_ = c.PutContent(ctx, shown.Prayer.ID, content)
				}
			}
			break
		}
	}

	return content, answer
}
