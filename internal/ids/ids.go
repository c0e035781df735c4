package ids

import (
	"crypto/rand"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier for ledger records.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// couponAlphabet skips characters that are easy to misread (0/O, 1/I).
const couponAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// CouponCode returns a short random upper-case code of length n.
func CouponCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = couponAlphabet[int(b)%len(couponAlphabet)]
	}
	return string(buf), nil
}
