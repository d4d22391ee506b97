package prayer

import (
	"fmt"
	"unicode/utf8"

	"github.com/iamoberlin/chorus/internal/crypto"
	"github.com/iamoberlin/chorus/internal/errors"
)

// ValidateName checks an agent display name against the rune limit.
func ValidateName(name string) error {
	if n := utf8.RuneCountInString(name); n > MaxNameChars {
		return errors.NewNameTooLong(MaxNameChars, n)
	}
	return nil
}

// ValidateSkills checks an agent skills string against the rune limit.
func ValidateSkills(skills string) error {
	if n := utf8.RuneCountInString(skills); n > MaxSkillsChars {
		return errors.NewSkillsTooLong(MaxSkillsChars, n)
	}
	return nil
}

// ValidateEncryptionKey rejects the all-zero key, which would leak a
// predictable shared secret to anyone encrypting toward it.
func ValidateEncryptionKey(key crypto.PublicKey) error {
	if key.IsZero() {
		return errors.NewInvalidEncryptionKey()
	}
	return nil
}

// ValidateTTL checks the advisory lifetime bounds.
func ValidateTTL(ttlSeconds int64) error {
	if ttlSeconds < MinTTLSeconds || ttlSeconds > MaxTTLSeconds {
		return errors.NewInvalidTTL(MinTTLSeconds, MaxTTLSeconds, ttlSeconds)
	}
	return nil
}

// ValidateMaxClaimers checks the collaborator cap bounds.
func ValidateMaxClaimers(n int) error {
	if n < 1 || n > MaxClaimersLimit {
		return errors.NewInvalidMaxClaimers(MaxClaimersLimit, n)
	}
	return nil
}

// ValidateType checks the prayer type tag.
func ValidateType(t PrayerType) error {
	if !t.Valid() {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown prayer type %q", string(t)))
	}
	return nil
}

// ValidateSealedPayload checks an encrypted blob against the transport budget.
// The engine never inspects blob contents; only presence and size.
func ValidateSealedPayload(blob []byte) error {
	if len(blob) == 0 {
		return errors.NewInvalidRequest("encrypted payload is required")
	}
	if len(blob) > crypto.TransportBudget {
		return errors.NewPayloadTooLarge(crypto.TransportBudget, len(blob))
	}
	return nil
}
