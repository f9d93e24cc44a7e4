package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const orderIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateOrderID produces a human-readable order id like PED-4K7Q2X. Ids are
// random, not sequential; the ledger insert retries on the rare collision.
func GenerateOrderID() string {
	b := make([]byte, 6)
	max := big.NewInt(int64(len(orderIDAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is not survivable in any meaningful way
			panic(fmt.Sprintf("order id generation: %v", err))
		}
		b[i] = orderIDAlphabet[n.Int64()]
	}
	return "PED-" + string(b)
}
