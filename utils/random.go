package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ReferencePrefix is the leading tag of every purchase reference number.
const ReferencePrefix = "TIX"

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateDigits returns a string of length crypto-random decimal digits.
func GenerateDigits(length int) (string, error) {
	const charset = "0123456789"

	code := make([]byte, length)
	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := 0; i < length; i++ {
		code[i] = charset[int(code[i])%len(charset)]
	}

	return string(code), nil
}

// NewReference generates a purchase reference number of the form
// TIX-<unix millis>-<6 digits>. The random suffix makes collisions across
// concurrent submissions vanishingly unlikely; the reference doubles as the
// merchant reference sent to the payment gateway.
func NewReference() (string, error) {
	suffix, err := GenerateDigits(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", ReferencePrefix, time.Now().UnixMilli(), suffix), nil
}

// NewTicketNumber derives a ticket number from its purchase reference, the
// seat ordinal (1-based) and a random suffix. Unique within the purchase by
// ordinal alone; the suffix keeps numbers globally unguessable.
func NewTicketNumber(reference string, seat int) (string, error) {
	suffix, err := GenerateCode(2)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-T%d-%s", reference, seat, suffix), nil
}
