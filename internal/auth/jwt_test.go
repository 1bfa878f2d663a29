package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestHSVerify(t *testing.T) {
	v, err := NewVerifier("HS256", "s3cret", "")
	require.NoError(t, err)

	tok := sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{
		"id": "u1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Role: "admin"}, id)
	assert.True(t, id.IsAdmin())

	id, err = v.Verify(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"sub": "u2"}))
	require.NoError(t, err)
	assert.Equal(t, "u2", id.UserID)
	assert.False(t, id.IsAdmin())
}

func TestHSRejects(t *testing.T) {
	v, err := NewHSVerifier("s3cret")
	require.NoError(t, err)

	_, err = v.Verify(sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"id": "u1"}))
	assert.Error(t, err)

	_, err = v.Verify(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{
		"id": "u1", "exp": time.Now().Add(-time.Minute).Unix(),
	}))
	assert.Error(t, err)

	_, err = v.Verify(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"role": "member"}))
	assert.Error(t, err)

	_, err = v.Verify("garbage")
	assert.Error(t, err)
}

func TestRSVerify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifier("RS256", "", path)
	require.NoError(t, err)
	id, err := v.Verify(sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"user_id": "u9"}))
	require.NoError(t, err)
	assert.Equal(t, "u9", id.UserID)

	// an HMAC token must not pass an RSA verifier
	_, err = v.Verify(sign(t, jwt.SigningMethodHS256, []byte("x"), jwt.MapClaims{"id": "u9"}))
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "abc", "Basic abc", "Bearer "} {
		_, err := BearerToken(h)
		assert.Error(t, err, h)
	}
}

func TestUnsupportedAlg(t *testing.T) {
	_, err := NewVerifier("none", "", "")
	assert.Error(t, err)
}
