// Package signature implements the gateway's check-value scheme for
// payment callbacks: a double SHA-512 over the order identifiers and a
// hashed merchant token.
package signature

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Verifier validates payment callback signatures against the shared
// merchant secret.
type Verifier struct {
	merchantKey   string
	merchantToken string
}

// NewVerifier creates a new Verifier
func NewVerifier(merchantKey, merchantToken string) *Verifier {
	return &Verifier{merchantKey: merchantKey, merchantToken: merchantToken}
}

// CheckValue computes the expected signature for a callback:
// hash1 = SHA512(merchantToken) uppercase hex
// check = SHA512("merchantKey|orderID|paymentID|hash1") uppercase hex
func (v *Verifier) CheckValue(orderID, paymentID string) string {
	hash1 := sha512.Sum512([]byte(v.merchantToken))
	hash1Hex := strings.ToUpper(hex.EncodeToString(hash1[:]))

	data := fmt.Sprintf("%s|%s|%s|%s", v.merchantKey, orderID, paymentID, hash1Hex)
	check := sha512.Sum512([]byte(data))
	return strings.ToUpper(hex.EncodeToString(check[:]))
}

// Verify reports whether the presented signature matches the expected
// check value. Comparison is constant-time.
func (v *Verifier) Verify(orderID, paymentID, presented string) bool {
	expected := v.CheckValue(orderID, paymentID)
	presented = strings.ToUpper(strings.TrimSpace(presented))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
