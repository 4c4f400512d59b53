package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateTransactionID returns a human-legible master ticket ID of the
// form TXN-<unix seconds>-<6 random digits>. The random suffix keeps the
// collision probability negligible within a venue's daily volume; the
// store's primary key still rejects the rare duplicate and callers retry
// with a fresh ID.
func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("TXN-%d-%06d", timestamp, randomNum.Int64())
}
