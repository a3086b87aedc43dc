package chain

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalSign(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	got, err := RecoverAddress("Login to Digidrop: n1", personalSign(t, key, "Login to Digidrop: n1"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifySignatureIsCaseInsensitive(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()
	sig := personalSign(t, key, "Login to Digidrop: abc")

	require.NoError(t, VerifySignature(strings.ToLower(wallet), "Login to Digidrop: abc", sig))
	require.NoError(t, VerifySignature(wallet, "Login to Digidrop: abc", sig))
}

func TestVerifySignatureMismatch(t *testing.T) {
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	sig := personalSign(t, key, "Login to Digidrop: abc")

	err := VerifySignature(crypto.PubkeyToAddress(other.PublicKey).Hex(), "Login to Digidrop: abc", sig)
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	// same key, different message
	err = VerifySignature(crypto.PubkeyToAddress(key.PublicKey).Hex(), "Login to Digidrop: xyz", sig)
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)
}

func TestVerifySignatureGarbage(t *testing.T) {
	for _, sig := range []string{"", "0x", "not-hex", "0x1234"} {
		err := VerifySignature("0x0000000000000000000000000000000000000001", "m", sig)
		assert.ErrorIs(t, err, domain.ErrSignatureMismatch, sig)
	}
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	_, err = ChecksumAddress("0x123")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}
