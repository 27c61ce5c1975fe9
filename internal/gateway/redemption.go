package gateway

import (
	"crypto/rand"
	"fmt"
)

// crockfordAlphabet excludes I, L, O and U to avoid misreads over the phone
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// redemptionCodeLength gives 32^10 (~10^15) possible codes
const redemptionCodeLength = 10

// NewRedemptionCode generates a random code a cash-pickup recipient quotes at
// the agent counter. Codes are drawn from crypto/rand; the keyspace keeps the
// collision probability negligible at realistic issuance volumes.
func NewRedemptionCode() (string, error) {
	buf := make([]byte, redemptionCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate redemption code: %w", err)
	}

	code := make([]byte, redemptionCodeLength)
	for i, b := range buf {
		code[i] = crockfordAlphabet[int(b)%len(crockfordAlphabet)]
	}
	return string(code), nil
}
