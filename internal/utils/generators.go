package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"
)

// orderSeq disambiguates order numbers created within the same
// second. It starts at a random offset so two processes (or a
// restart) do not replay the same sequence.
var orderSeq = func() *uint32 {
	n, _ := rand.Int(rand.Reader, big.NewInt(1000))
	v := uint32(n.Int64())
	return &v
}()

// GenerateOrderNumber builds a 12-character gateway order number from
// a short alphabetic prefix, the current unix time and a rolling
// 3-digit sequence. Redsys requires the first 4 characters to be
// numeric once the prefix is stripped on their side, so the prefix
// stays at 2 letters.
func GenerateOrderNumber(prefix string) string {
	prefix = strings.ToUpper(prefix)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	seq := atomic.AddUint32(orderSeq, 1) % 1000
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	digits := 12 - len(prefix) - 3
	if len(timestamp) > digits {
		timestamp = timestamp[len(timestamp)-digits:]
	}
	return fmt.Sprintf("%s%s%03d", prefix, timestamp, seq)
}

// GenerateBookingNumber produces a human-readable booking reference,
// e.g. FC-20260901-4821.
func GenerateBookingNumber(prefix string) string {
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(9999))
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(prefix), time.Now().Format("20060102"), randomNum.Int64())
}

func GeneratePaymentID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("pay_%d_%06d", timestamp, randomNum.Int64())
}
