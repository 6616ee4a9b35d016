package models

import "time"

// ShortURL is a committed short link. A row exists only after some
// validation job for the url reached Safe.
type ShortURL struct {
	Hash      string    `json:"hash" badgerhold:"key"` // HashURL of the canonical url
	URL       string    `json:"url"`                   // Canonical destination
	JobID     string    `json:"jobId"`                 // Job whose Safe verdict committed this row
	CreatedAt time.Time `json:"createdAt"`
}
