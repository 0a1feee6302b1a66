// Package idgen generates wallet identifiers: transaction ids and card
// numbers. Both are random rather than sequential so neither leaks volume.
package idgen

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const cardPrefix = "7777"

// TransactionID returns a transaction id in the wallet's wire format:
// "PBC-" followed by 22 upper-case hex characters from a random UUID.
// Generated client-side of the database, before the row is persisted.
func TransactionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PBC-" + strings.ToUpper(hex[:22])
}

// CardNumber returns a 16-digit card number: the issuer prefix, ten random
// digits and two check digits (sum of odd digits mod 10, then sum of even
// digits mod 10). Uniqueness is the caller's problem; the card store has a
// unique index and creation retries on collision.
func CardNumber() string {
	var sb strings.Builder
	sb.WriteString(cardPrefix)

	oddSum, evenSum := 0, 0
	for i := 0; i < 10; i++ {
		d := randomDigit()
		if d%2 == 0 {
			evenSum += d
		} else {
			oddSum += d
		}
		sb.WriteByte(byte('0' + d))
	}

	sb.WriteString(fmt.Sprintf("%d%d", oddSum%10, evenSum%10))
	return sb.String()
}

func randomDigit() int {
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source; nothing sensible can continue.
		log.Panicf("read random digit: %v", err)
	}
	return int(n.Int64())
}
