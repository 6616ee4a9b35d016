package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Key builders for the shared KV namespace. Every cached value in the
// system goes through one of these so the prefix scheme stays in one place.

// KeyGeoDetails is the full GeoDetails JSON for an IP.
func KeyGeoDetails(ip string) string {
	return "geo:details:" + ip
}

// KeyGeoCountry is the legacy country-only cache written by older writers.
// New writers still populate it for backward compatibility.
func KeyGeoCountry(ip string) string {
	return "geo:" + ip
}

// KeyReachability is the cached probe verdict for a canonical URL.
func KeyReachability(canonicalURL string) string {
	return "reachability:" + base64.URLEncoding.EncodeToString([]byte(canonicalURL))
}

// KeyQR is a rendered QR code for a url at a given size and format.
// The codec lives outside this service; the key discipline does not.
func KeyQR(url string, size int, ext string) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("qr:%x:%d:%s", sum, size, ext)
}

// Per-URL aggregate counter keys.
func KeyURLTotal(shortURLID string) string     { return "stats:url:" + shortURLID + ":total" }
func KeyURLCountries(shortURLID string) string { return "stats:url:" + shortURLID + ":countries" }
func KeyURLCities(shortURLID string) string    { return "stats:url:" + shortURLID + ":cities" }

// System-wide aggregate counter keys.
const (
	KeySystemTotal     = "stats:system:total"
	KeySystemCountries = "stats:system:countries"
	KeySystemCities    = "stats:system:cities"
)
