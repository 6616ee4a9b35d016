package models

import "time"

// UnknownCountryCode is the sentinel country code for unresolvable IPs.
const UnknownCountryCode = "XX"

// UnknownCountry is the display value stored on click records when no
// country could be resolved.
const UnknownCountry = "Unknown"

// GeoDetails describes a resolved IP location. Every field is optional;
// the sentinel uses CountryCode "XX".
type GeoDetails struct {
	CountryCode  string  `json:"countryCode,omitempty"`
	CountryName  string  `json:"countryName,omitempty"`
	Region       string  `json:"region,omitempty"`
	City         string  `json:"city,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Timezone     string  `json:"timezone,omitempty"`
	ISP          string  `json:"isp,omitempty"`
	Organization string  `json:"organization,omitempty"`
}

// UnknownGeoDetails returns the sentinel for a failed resolution.
func UnknownGeoDetails() GeoDetails {
	return GeoDetails{CountryCode: UnknownCountryCode}
}

// IsUnknown reports whether the details carry no usable country.
func (g GeoDetails) IsUnknown() bool {
	return g.CountryCode == "" || g.CountryCode == UnknownCountryCode
}

// Country returns the normalized country for persistence: empty and "XX"
// become "Unknown".
func (g GeoDetails) Country() string {
	if g.IsUnknown() {
		return UnknownCountry
	}
	return g.CountryCode
}

// ClickEvent is published on every successful redirect. Emission is
// fire-and-forget; the redirect path never waits on processing.
type ClickEvent struct {
	ShortURLID string    `json:"shortUrlId"`
	IP         string    `json:"ip,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ClickInfo is the persisted form of a ClickEvent enriched with the
// resolved country.
type ClickInfo struct {
	ID         uint64    `json:"-" badgerhold:"key"`
	ShortURLID string    `json:"shortUrlId"`
	IP         string    `json:"ip,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Country    string    `json:"country"`
	Timestamp  time.Time `json:"timestamp"`
}
