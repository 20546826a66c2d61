package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Upstream panels annotate each connection URI with `#<country>-<traffic>`
// where the traffic token looks like "12.5GB". Units are decimal, matching
// what the panels themselves display.
var (
	trafficValueRe = regexp.MustCompile(`(?i)([\d.]+)\s*([GMKT]B)`)
	trafficTokenRe = regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s*(?:GB|MB|KB|TB)`)
)

func convertToBytes(value float64, unit string) int64 {
	switch strings.ToUpper(unit) {
	case "KB":
		return int64(value * 1e3)
	case "MB":
		return int64(value * 1e6)
	case "GB":
		return int64(value * 1e9)
	case "TB":
		return int64(value * 1e12)
	default:
		return int64(value)
	}
}

// parseRemaining extracts a remaining-traffic byte count from a metadata
// token. Comma decimal separators are accepted.
func parseRemaining(token string) (int64, bool) {
	token = strings.ReplaceAll(token, ",", ".")
	m := trafficValueRe.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return convertToBytes(value, m[2]), true
}

// TrafficSummary renders the subscription-userinfo header value from the
// aggregated lines. With a per-country quota configured, the total is
// quota × distinct countries and consumption is derived from what the
// panels report as remaining. When a country appears on several lines the
// last one wins; countries are expected to map to one node each.
// Without a quota the sentinel pair consumed=1/total=0 means unmetered.
func TrafficSummary(lines []string, expiryMs, quotaBytes int64) string {
	var expire int64
	if expiryMs > 0 {
		expire = expiryMs / 1000
	}

	if quotaBytes == 0 {
		return fmt.Sprintf("upload=0; download=1; total=0; expire=%d", expire)
	}

	remaining := make(map[string]int64)
	for _, line := range lines {
		_, meta, found := strings.Cut(line, "#")
		if !found {
			continue
		}
		parts := strings.SplitN(meta, "-", 2)
		country := strings.TrimSpace(parts[0])
		if country == "" || len(parts) != 2 {
			continue
		}
		if bytes, ok := parseRemaining(strings.TrimSpace(parts[1])); ok {
			remaining[country] = bytes
		}
	}

	total := quotaBytes * int64(len(remaining))
	var left int64
	for _, bytes := range remaining {
		left += bytes
	}
	consumed := total - left
	if consumed < 0 {
		consumed = 0
	}
	return fmt.Sprintf("upload=0; download=%d; total=%d; expire=%d", consumed, total, expire)
}
