package requestid

import (
	crand "crypto/rand"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultHeaderKey = "X-Request-Id"

// maxInboundLen bounds ids accepted from clients.
const maxInboundLen = 128

// ResolveHeaderKey returns the provided header key when non-empty,
// otherwise the default request id header key.
func ResolveHeaderKey(headerKey string) string {
	if v := strings.TrimSpace(headerKey); v != "" {
		return v
	}
	return DefaultHeaderKey
}

// Gen returns a time-ordered UUID (version 7), falling back to a random one.
func Gen() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// GenDigits returns yyyymmddHHMMSSuuuuuu followed by 8 random digits.
func GenDigits() string {
	return timeString(time.Now()) + randomDigits(8)
}

// Generator returns the id generator for a configured style: "uuid"
// (default), "uuidv4" or "digits".
func Generator(style string) func() string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "digits":
		return GenDigits
	case "uuidv4":
		return uuid.NewString
	default:
		return Gen
	}
}

// FromRequest returns the client supplied id when it is usable.
func FromRequest(r *http.Request, headerKey string) (string, bool) {
	if r == nil {
		return "", false
	}
	v := strings.TrimSpace(r.Header.Get(ResolveHeaderKey(headerKey)))
	if !Valid(v) {
		return "", false
	}
	return v, true
}

// Valid reports whether v is a non-empty printable ASCII id of sane length.
func Valid(v string) bool {
	if v == "" || len(v) > maxInboundLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return false
		}
	}
	return true
}

func timeString(ts time.Time) string {
	return strings.ReplaceAll(ts.Format("20060102150405.000000"), ".", "")
}

func randomDigits(n int) string {
	const digits = "0123456789"
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(digits[cryptoRandIntn(len(digits))])
	}
	return b.String()
}

func cryptoRandIntn(max int) int {
	if max <= 0 {
		return 0
	}
	nBig, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(nBig.Int64())
}
