package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	secretBytes = 20
	digits      = 6
	// period is the TOTP step size in seconds (RFC 6238).
	period = 30
)

// GenerateSecret returns a fresh 20-byte shared secret and its base32
// encoding without padding (RFC 3548), the form authenticator apps
// accept.
func GenerateSecret() (raw []byte, encoded string, err error) {
	raw = make([]byte, secretBytes)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", err
	}
	encoded = base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return raw, encoded, nil
}

// DecodeSecret reverses the base32 encoding from GenerateSecret.
func DecodeSecret(encoded string) ([]byte, error) {
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(strings.TrimSpace(encoded)))
}

// OTPAuthURL builds the otpauth:// payload rendered as a QR code.
func OTPAuthURL(issuer, accountName, secretB32 string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, accountName))
	q := url.Values{}
	q.Set("secret", secretB32)
	q.Set("issuer", issuer)
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", digits))
	q.Set("period", fmt.Sprintf("%d", period))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, q.Encode())
}

// Verify checks code against the secret at time t, tolerating
// skewSteps periods of clock drift on either side. On success it also
// returns the matched step so callers can refuse to accept that step,
// or an earlier one, a second time.
func Verify(secret []byte, code string, t time.Time, skewSteps int) (bool, int64) {
	code = strings.TrimSpace(code)
	if len(code) != digits {
		return false, 0
	}
	counter := t.Unix() / period
	for c := counter - int64(skewSteps); c <= counter+int64(skewSteps); c++ {
		if subtle.ConstantTimeCompare([]byte(generate(secret, c)), []byte(code)) == 1 {
			return true, c
		}
	}
	return false, 0
}

// Code returns the TOTP value for the secret at time t. Used by
// clients and tests; Verify is the authoritative check.
func Code(secret []byte, t time.Time) string {
	return generate(secret, t.Unix()/period)
}

// generate implements HOTP (RFC 4226) with HMAC-SHA1 truncation.
func generate(secret []byte, counter int64) string {
	var msg [8]byte
	for i := 7; i >= 0; i-- {
		msg[i] = byte(counter & 0xff)
		counter >>= 8
	}
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := int(sum[len(sum)-1] & 0x0f)
	bin := (int(sum[offset])&0x7f)<<24 |
		int(sum[offset+1])<<16 |
		int(sum[offset+2])<<8 |
		int(sum[offset+3])
	return fmt.Sprintf("%0*d", digits, bin%1_000_000)
}
