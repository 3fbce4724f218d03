package cooldown

import (
	"strconv"
	"time"

	"reefbase/internal/domain/economy"
)

// RemainingSeconds rounds a millisecond wait up to whole seconds. Any positive
// wait reports at least one second.
func RemainingSeconds(remainingMs int64) int {
	if remainingMs <= 0 {
		return 0
	}
	remaining := time.Duration(remainingMs) * time.Millisecond
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RetryAfter formats a wait for the Retry-After header.
func RetryAfter(remainingMs int64) string {
	secs := RemainingSeconds(remainingMs)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RemainingByAction lists actions still waiting on a cooldown, keyed by action key.
func RemainingByAction(statuses []economy.ActionStatus) map[string]int {
	out := map[string]int{}
	for _, st := range statuses {
		if secs := RemainingSeconds(st.CooldownRemainingMs); secs > 0 {
			out[st.Key.String()] = secs
		}
	}
	return out
}
