package totp

import (
	"encoding/base32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	raw, encoded, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, raw, 20)
	assert.NotContains(t, encoded, "=")

	decoded, err := DecodeSecret(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestRFC6238Vectors(t *testing.T) {
	// Appendix B of RFC 6238, SHA1 rows, truncated to 6 digits.
	secret := []byte("12345678901234567890")
	vectors := map[int64]string{
		59:          "287082",
		1111111109:  "081804",
		1111111111:  "050471",
		1234567890:  "005924",
		2000000000:  "279037",
		20000000000: "353130",
	}
	for unix, want := range vectors {
		assert.Equal(t, want, Code(secret, time.Unix(unix, 0)), "t=%d", unix)
	}
}

func TestVerifyWithinSkew(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111109, 0)
	step := now.Unix() / 30

	ok, matched := Verify(secret, Code(secret, now), now, 1)
	assert.True(t, ok)
	assert.Equal(t, step, matched)

	ok, matched = Verify(secret, Code(secret, now.Add(-30*time.Second)), now, 1)
	assert.True(t, ok)
	assert.Equal(t, step-1, matched)

	ok, matched = Verify(secret, Code(secret, now.Add(30*time.Second)), now, 1)
	assert.True(t, ok)
	assert.Equal(t, step+1, matched)

	// Two steps away is outside a one-step skew.
	ok, _ = Verify(secret, Code(secret, now.Add(-90*time.Second)), now, 1)
	assert.False(t, ok)
	ok, _ = Verify(secret, Code(secret, now.Add(90*time.Second)), now, 1)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	secret := []byte("12345678901234567890")
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567"} {
		ok, _ := Verify(secret, code, now, 1)
		assert.False(t, ok, "code %q", code)
	}

	wrong := "000000"
	if wrong == Code(secret, now) {
		wrong = "000001"
	}
	ok, _ := Verify(secret, wrong, now, 0)
	assert.False(t, ok)
}

func TestOTPAuthURL(t *testing.T) {
	b32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte("12345678901234567890"))
	u := OTPAuthURL("DriveOwn Marketplace", "buyer@example.com", b32)

	assert.True(t, strings.HasPrefix(u, "otpauth://totp/"))
	assert.Contains(t, u, "secret="+b32)
	assert.Contains(t, u, "issuer=DriveOwn+Marketplace")
	assert.Contains(t, u, "digits=6")
	assert.Contains(t, u, "period=30")
}
