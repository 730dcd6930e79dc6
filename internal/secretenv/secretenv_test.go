package secretenv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/secretenv"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	token, err := secretenv.Wrap("correct horse battery staple", []byte("sk-ant-super-secret-token"))
	require.NoError(t, err)

	assert.True(t, secretenv.Looks(token))

	plaintext, err := secretenv.Unwrap("correct horse battery staple", token)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-super-secret-token", string(plaintext))
}

func TestUnwrapWithWrongPassphraseFails(t *testing.T) {
	// Long enough for the envelope to clear Looks' length floors.
	token, err := secretenv.Wrap("right-passphrase", []byte("payload long enough for the envelope"))
	require.NoError(t, err)

	_, err = secretenv.Unwrap("wrong-passphrase", token)
	assert.ErrorIs(t, err, secretenv.ErrMalformed)
}

func TestLooksRejectsShortStrings(t *testing.T) {
	assert.False(t, secretenv.Looks("too-short"))
}

func TestLooksRejectsNonBase64(t *testing.T) {
	assert.False(t, secretenv.Looks("this is not base64 at all!! "+string(make([]byte, 80))))
}

func TestLooksRejectsWrongVersionByte(t *testing.T) {
	token, err := secretenv.Wrap("pw", []byte("some reasonably long plaintext payload"))
	require.NoError(t, err)

	// Flip the version byte by re-wrapping with a manually corrupted token
	// is awkward without base64 surgery, so instead confirm a same-length
	// plain string (no version byte 0x80 after decode) is rejected.
	assert.False(t, secretenv.Looks("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
	_ = token
}

func TestUnwrapRejectsNonEnvelopeToken(t *testing.T) {
	_, err := secretenv.Unwrap("pw", "plain-api-key-not-an-envelope")
	assert.ErrorIs(t, err, secretenv.ErrNotEnvelope)
}
