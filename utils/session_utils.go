package utils

import (
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// GenerateSessionID returns "<unix millis>-<random>". The millisecond prefix
// is what variant.FromSessionID hashes on.
func GenerateSessionID(now time.Time) string {
	random := shortuuid.New()
	if len(random) > 9 {
		random = random[:9]
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), random)
}
