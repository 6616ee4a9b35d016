// Package geo enriches click events with IP geolocation through a
// cache-first provider chain and records the results for analytics.
package geo

import "net"

// isPrivateOrLocal reports whether an IP can never resolve to a public
// location: blank, unparseable, loopback, link-local or private ranges.
// These short-circuit to the unknown sentinel without touching any
// provider.
func isPrivateOrLocal(ip string) bool {
	if ip == "" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() ||
		parsed.IsPrivate() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsLinkLocalMulticast() ||
		parsed.IsUnspecified()
}
