package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKeyPairDeterministic(t *testing.T) {
	_, signing, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pub1, priv1 := DeriveKeyPair(signing)
	pub2, priv2 := DeriveKeyPair(signing)

	require.Equal(t, pub1, pub2)
	require.Equal(t, priv1, priv2)

	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pub3, _ := DeriveKeyPair(other)
	require.NotEqual(t, pub1, pub3)
}

func TestDeriveKeyPairClampsScalar(t *testing.T) {
	_, signing, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, priv := DeriveKeyPair(signing)

	require.Zero(t, priv[0]&7, "low three bits must be cleared")
	require.Zero(t, priv[31]&128, "high bit must be cleared")
	require.EqualValues(t, 64, priv[31]&64, "second-highest bit must be set")
}

func TestDeriveKeyPairPublicMatchesPrivate(t *testing.T) {
	_, signing, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pub, priv := DeriveKeyPair(signing)
	require.Equal(t, pub, priv.Public())
	require.False(t, pub.IsZero())
}

func TestDeriveKeyPairRejectsBadLength(t *testing.T) {
	require.Panics(t, func() {
		DeriveKeyPair(make(ed25519.PrivateKey, 31))
	})
	require.Panics(t, func() {
		DeriveKeyPair(nil)
	})
}

func TestParsePublicKey(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := ParsePublicKey(pub.String())
	require.NoError(t, err)
	require.Equal(t, pub, parsed)

	_, err = ParsePublicKey("not hex")
	require.Error(t, err)

	_, err = ParsePublicKey("abcd")
	require.Error(t, err)
}

func TestPublicKeyTextRoundTrip(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	encoded, err := json.Marshal(pub)
	require.NoError(t, err)

	var decoded PublicKey
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, pub, decoded)
}

func TestPublicKeyIsZero(t *testing.T) {
	var zero PublicKey
	require.True(t, zero.IsZero())

	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, pub.IsZero())
}

func TestSharedKeySymmetry(t *testing.T) {
	alicePub, alicePriv, err := GenerateKeyPair()
	require.NoError(t, err)
	bobPub, bobPriv, err := GenerateKeyPair()
	require.NoError(t, err)

	require.Equal(t, SharedKey(alicePriv, bobPub), SharedKey(bobPriv, alicePub))

	evePub, _, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NotEqual(t, SharedKey(alicePriv, bobPub), SharedKey(alicePriv, evePub))
}
