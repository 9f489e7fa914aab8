package booking

import (
	"math/rand/v2"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode builds <prefix>-YYYYMMDD-XXXX from the creation time in loc.
// Codes are not guaranteed unique.
func NewCode(prefix string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return prefix + "-" + now.In(loc).Format("20060102") + "-" + string(suffix)
}
