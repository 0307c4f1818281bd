package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SigningPayload is the string a request signature covers.
func SigningPayload(fullMethod, timestamp string) string {
	return fullMethod + "\n" + timestamp
}

// ComputeHMAC computes the hex HMAC-SHA256 of payload using secret.
func ComputeHMAC(secret []byte, payload string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC compares signatures in constant time.
func VerifyHMAC(expected, computed string) bool {
	return hmac.Equal([]byte(expected), []byte(computed))
}
