package pesapal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// SignIPN produces the signature an IPN push must carry for the given
// tracking id and merchant reference.
func SignIPN(secret, trackingID, merchantReference string) string {
	msg := fmt.Sprintf("%s:%s", trackingID, merchantReference)
	return Hmac256([]byte(msg), []byte(secret))
}

// VerifyIPNSignature checks an IPN push signature in constant time.
func VerifyIPNSignature(secret, trackingID, merchantReference, signature string) bool {
	expected := SignIPN(secret, trackingID, merchantReference)
	return hmac.Equal([]byte(signature), []byte(expected))
}
