package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptorFromSecret("clinic-secret")
	require.NoError(t, err)

	sealed, err := enc.Seal([]byte("Mass lesion suspicious for malignancy"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "Mass lesion")

	plain, err := enc.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Mass lesion suspicious for malignancy", string(plain))
}

func TestEncryptor_SameSecretSameKey(t *testing.T) {
	a, err := NewEncryptorFromSecret("shared")
	require.NoError(t, err)
	b, err := NewEncryptorFromSecret("shared")
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("payload"))
	require.NoError(t, err)
	plain, err := b.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))
}

func TestEncryptor_WrongSecretFails(t *testing.T) {
	a, _ := NewEncryptorFromSecret("one")
	b, _ := NewEncryptorFromSecret("two")

	sealed, err := a.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptor_Errors(t *testing.T) {
	_, err := NewEncryptor([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewEncryptorFromSecret("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	enc, _ := NewEncryptorFromSecret("x")
	_, err = enc.Open([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
