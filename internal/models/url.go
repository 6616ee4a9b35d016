package models

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// MaxURLLength is the longest raw URL accepted for shortening.
const MaxURLLength = 2048

var (
	// ErrInvalidInput marks a blank, oversize or unparseable submission.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidURL marks a parseable URL with an unsupported scheme or
	// missing host.
	ErrInvalidURL = errors.New("invalid url")
)

// CanonicalizeURL normalizes a raw URL into its canonical form: lower-case
// scheme and host, IDNA-ASCII host, default path "/", fragment stripped.
// The canonical form is the hash input and the broker payload.
func CanonicalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is empty", ErrInvalidInput)
	}
	if len(raw) > MaxURLLength {
		return "", fmt.Errorf("%w: url exceeds %d characters", ErrInvalidInput, MaxURLLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed url: %v", ErrInvalidInput, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: url has no host", ErrInvalidURL)
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Keep the lower-cased host when punycode conversion fails
		asciiHost = host
	}
	if port := parsed.Port(); port != "" {
		asciiHost = asciiHost + ":" + port
	}

	parsed.Scheme = scheme
	parsed.Host = asciiHost
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	parsed.Fragment = ""

	return parsed.String(), nil
}

// HashURL derives the short-url key from a canonical URL: a 32-bit FNV-1a
// hash rendered as hex. Deterministic, non-cryptographic, 8 chars.
func HashURL(canonical string) string {
	h := fnv.New32a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%08x", h.Sum32())
}
