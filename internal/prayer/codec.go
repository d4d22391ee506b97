package prayer

import (
	"encoding/json"
	"fmt"
)

// Records are stored in the ledger as JSON. The codec lives here so the
// ledger stays a generic address-to-bytes store and every reader decodes
// through one place.

// Encode serializes a record for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeChain parses a stored chain record.
func DecodeChain(data []byte) (*ChainState, error) {
	var c ChainState
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chain record: %w", err)
	}
	return &c, nil
}

// DecodeAgent parses a stored agent profile.
func DecodeAgent(data []byte) (*AgentProfile, error) {
	var a AgentProfile
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode agent record: %w", err)
	}
	return &a, nil
}

// DecodePrayer parses a stored prayer record.
func DecodePrayer(data []byte) (*PrayerRecord, error) {
	var p PrayerRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prayer record: %w", err)
	}
	return &p, nil
}

// DecodeClaim parses a stored claim record.
func DecodeClaim(data []byte) (*ClaimRecord, error) {
	var c ClaimRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode claim record: %w", err)
	}
	return &c, nil
}
