// Package rollout implements deterministic percentage bucketing for flag
// rollouts. This is the only source of randomness-like behavior in the flag
// system: the same user always lands in the same bucket, so raising a
// flag's percentage only grows the audience, never reshuffles it.
package rollout

// Bucket maps a user id to a stable percentile in [0, 100) using a
// polynomial rolling hash wrapped to signed 32 bits.
func Bucket(userID string) int {
	var h int32
	for _, r := range userID {
		h = h*31 + int32(r)
	}
	if h < 0 {
		// arithmetic negation overflows at MinInt32
		if h == -2147483648 {
			h = 0
		} else {
			h = -h
		}
	}
	return int(h % 100)
}

// IsInRollout reports whether userID falls inside percentage. An empty
// user id fails closed. Percentages at or beyond the bounds skip the hash
// entirely.
func IsInRollout(userID string, percentage int) bool {
	if percentage >= 100 {
		return true
	}
	if percentage <= 0 {
		return false
	}
	if userID == "" {
		return false
	}
	return Bucket(userID) < percentage
}
