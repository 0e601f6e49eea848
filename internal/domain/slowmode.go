package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SlowModeOff disables the per-room message cooldown.
const SlowModeOff = "off"

var slowModePattern = regexp.MustCompile(`^(\d+)s$`)

// ParseSlowMode converts a stored slow-mode setting into a cooldown duration.
// "off", empty, or malformed values all mean no cooldown.
func ParseSlowMode(v string) time.Duration {
	m := slowModePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(v)))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// NormalizeSlowMode coerces an admin-provided value to either "off" or a
// bounded "Ns" duration. Anything unrecognized falls back to "off".
func NormalizeSlowMode(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == SlowModeOff {
		return SlowModeOff
	}
	if !slowModePattern.MatchString(v) {
		return SlowModeOff
	}
	return v
}
