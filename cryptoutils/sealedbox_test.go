package cryptoutils

import (
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedBoxRoundTrip(t *testing.T) {
	pubkey, priv, err := GenerateBoxKeypair()
	require.NoError(t, err)

	pub := pubFromBase58(t, pubkey)

	sealed, err := SealToPubkey(pubkey, []byte("share material"))
	require.NoError(t, err)

	opened, err := OpenSealed(sealed, pub, priv)
	require.NoError(t, err)
	assert.Equal(t, []byte("share material"), opened)
}

func TestSealedBoxWrongRecipient(t *testing.T) {
	pubkey, _, err := GenerateBoxKeypair()
	require.NoError(t, err)

	otherPub, otherPriv, err := GenerateBoxKeypair()
	require.NoError(t, err)

	sealed, err := SealToPubkey(pubkey, []byte("share material"))
	require.NoError(t, err)

	_, err = OpenSealed(sealed, pubFromBase58(t, otherPub), otherPriv)
	assert.Error(t, err)
}

func TestSealToPubkeyRejectsBadKeys(t *testing.T) {
	_, err := SealToPubkey("not-base58-!!", []byte("x"))
	assert.Error(t, err)

	_, err = SealToPubkey("3mJr7AoUXx2Wqd", []byte("x")) // decodes to fewer than 32 bytes
	assert.Error(t, err)
}

func TestShamirSplitCombine(t *testing.T) {
	secret := make([]byte, 64)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	shares, err := SplitSecret(secret, 3, 2)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	recovered, err := CombineShares([][]byte{shares[0], shares[2]})
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestShamirValidation(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	_, err := SplitSecret(secret, 3, 1)
	assert.Error(t, err)

	_, err = SplitSecret(secret, 1, 2)
	assert.Error(t, err)

	_, err = SplitSecret(nil, 3, 2)
	assert.Error(t, err)

	_, err = CombineShares([][]byte{{1, 2, 3}})
	assert.Error(t, err)
}

func pubFromBase58(t *testing.T, pubkey string) *[32]byte {
	t.Helper()
	raw, err := base58.Decode(pubkey)
	require.NoError(t, err)
	require.Len(t, raw, 32)

	var pub [32]byte
	copy(pub[:], raw)
	return &pub
}
