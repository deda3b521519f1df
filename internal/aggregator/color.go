package aggregator

import (
	"fmt"
	"math"
	"unicode/utf16"
)

// ContributorColor derives a stable HSL colour from a login so the same
// contributor is drawn in the same colour on every chart. The hash follows
// the browser dashboard's string hash, which mixes 32-bit shifts with
// float64 arithmetic over UTF-16 code units.
func ContributorColor(login string) string {
	var hash float64
	for _, unit := range utf16.Encode([]rune(login)) {
		shifted := toInt32(hash) << 5
		hash = float64(unit) + (float64(shifted) - hash)
	}
	hue := int(math.Mod(math.Abs(hash), 360))
	return fmt.Sprintf("hsl(%d, 65%%, 55%%)", hue)
}

// toInt32 wraps a whole float64 into the signed 32-bit range
func toInt32(f float64) int32 {
	return int32(int64(math.Trunc(f)))
}
