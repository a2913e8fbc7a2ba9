package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	orderIDAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	giftCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	digits           = "0123456789"
)

var (
	idMu   sync.Mutex
	lastID int64
)

// NewGiftCardID returns a millisecond timestamp id that is strictly greater than
// every id previously returned by this process.
func NewGiftCardID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return strconv.FormatInt(id, 10)
}

// NewOrderID returns an 8 character upper-case alphanumeric order id.
func NewOrderID() (string, error) {
	return randomString(orderIDAlphabet, 8)
}

// NewGiftCode returns a redemption code formatted XXXX-XXXX-XX.
func NewGiftCode() (string, error) {
	raw, err := randomString(giftCodeAlphabet, 10)
	if err != nil {
		return "", err
	}
	return raw[:4] + "-" + raw[4:8] + "-" + raw[8:], nil
}

// IsGiftCode reports whether code has the XXXX-XXXX-XX shape over the gift code alphabet.
func IsGiftCode(code string) bool {
	if len(code) != 12 || code[4] != '-' || code[9] != '-' {
		return false
	}
	for i, r := range code {
		if i == 4 || i == 9 {
			continue
		}
		if !strings.ContainsRune(giftCodeAlphabet, r) {
			return false
		}
	}
	return true
}

// NumericCode returns n digits, each drawn uniformly at random.
func NumericCode(n int) (string, error) {
	return randomString(digits, n)
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
