package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the HMAC of a streamed audit event.
const SignatureHeader = "X-Audit-Signature"

// Sign returns the base64 HMAC-SHA256 of payload under key.
func Sign(payload []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches payload under key.
func VerifySignature(payload []byte, key, signature string) bool {
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(key))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), expected)
}
