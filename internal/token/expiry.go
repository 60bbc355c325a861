// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseExpiry parses a token-expiry setting. Accepted forms:
//
//	"900"          pure integer, seconds
//	"15m"          unit-suffixed: s, m, h, d
//	"15 minutes"   verbose English: second(s), minute(s), hour(s), day(s)
//
// Callers fall back to their configured default on error.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty expiry")
	}

	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("expiry must be positive, got %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}

	if fields := strings.Fields(s); len(fields) == 2 {
		return parseVerbose(fields[0], fields[1])
	}

	return parseSuffixed(s)
}

var unitDurations = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

func parseSuffixed(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid expiry %q", s)
	}
	unit, ok := unitDurations[s[len(s)-1:]]
	if !ok {
		return 0, fmt.Errorf("invalid expiry unit in %q (want s, m, h, or d)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid expiry value in %q", s)
	}
	return time.Duration(n) * unit, nil
}

var verboseUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

func parseVerbose(value, unit string) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid expiry value %q", value)
	}
	d, ok := verboseUnits[strings.TrimSuffix(strings.ToLower(unit), "s")]
	if !ok {
		return 0, fmt.Errorf("invalid expiry unit %q", unit)
	}
	return time.Duration(n) * d, nil
}

// ExpiryOrDefault parses s, falling back to def on any parse failure.
func ExpiryOrDefault(s string, def time.Duration) time.Duration {
	d, err := ParseExpiry(s)
	if err != nil {
		return def
	}
	return d
}
