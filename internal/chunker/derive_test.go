package chunker

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-media-secret")

func TestChunkCodeDeterministic(t *testing.T) {
	a := ChunkCode(secret, "u7_24010114_42_0000.m3u8")
	b := ChunkCode(secret, "u7_24010114_42_0000.m3u8")
	assert.Equal(t, a, b)

	// 12 bytes base64url-encoded without padding.
	assert.Len(t, a, 16)
	assert.NotContains(t, a, "=")
}

func TestChunkCodeDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t,
		ChunkCode(secret, "u7_24010114_42_0000.m3u8"),
		ChunkCode(secret, "u7_24010114_43_0000.m3u8"))
	assert.NotEqual(t,
		ChunkCode(secret, "video.m3u8"),
		ChunkCode([]byte("other-secret"), "video.m3u8"))
}

func TestChunkNameDependsOnIndex(t *testing.T) {
	code := ChunkCode(secret, "video.m3u8")
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := ChunkName(secret, code, i)
		assert.False(t, seen[name], "collision at index %d", i)
		seen[name] = true
		assert.True(t, strings.HasSuffix(name, ChunkExt))
		assert.Len(t, name, 16+len(ChunkExt))
	}
	assert.Equal(t, ChunkName(secret, code, 7), ChunkName(secret, code, 7))
}

func TestAccessTokenShape(t *testing.T) {
	code := ChunkCode(secret, "video.m3u8")
	token := AccessToken(secret, code)
	assert.Equal(t, token, AccessToken(secret, code))
	// 8 bytes base64url-encoded without padding.
	assert.Len(t, token, 11)
	assert.NotContains(t, token, "=")
}

func TestDeriveKeyStable(t *testing.T) {
	token := AccessToken(secret, ChunkCode(secret, "video.m3u8"))
	k1 := DeriveKey(secret, token)
	k2 := DeriveKey(secret, token)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 16)

	assert.NotEqual(t, k1, DeriveKey(secret, token+"x"))
}

// decryptAES128CBC is the player-side inverse, implemented here only to
// verify round trips.
func decryptAES128CBC(t *testing.T, ciphertext, key []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	require.Zero(t, len(ciphertext)%aes.BlockSize)
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, fixedIV).CryptBlocks(plain, ciphertext)
	padLen := int(plain[len(plain)-1])
	require.GreaterOrEqual(t, padLen, 1)
	require.LessOrEqual(t, padLen, aes.BlockSize)
	return plain[:len(plain)-padLen]
}

func TestEncryptRoundTrip(t *testing.T) {
	key := DeriveKey(secret, "sometoken")
	for _, plaintext := range [][]byte{
		[]byte(""),
		[]byte("short"),
		[]byte("exactly sixteen!"),
		bytes.Repeat([]byte{0xAB}, 1000),
	} {
		ciphertext, err := encryptAES128CBC(plaintext, key)
		require.NoError(t, err)
		assert.Zero(t, len(ciphertext)%aes.BlockSize)
		assert.NotEqual(t, plaintext, ciphertext)
		assert.Equal(t, plaintext, decryptAES128CBC(t, ciphertext, key))
	}
}

func TestEncryptDeterministicForReplay(t *testing.T) {
	key := DeriveKey(secret, "sometoken")
	a, err := encryptAES128CBC([]byte("segment payload"), key)
	require.NoError(t, err)
	b, err := encryptAES128CBC([]byte("segment payload"), key)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
