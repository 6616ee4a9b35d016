package models

import "fmt"

// ProbeErrorType classifies why a reachability probe failed.
type ProbeErrorType string

const (
	ProbeErrorTimeout ProbeErrorType = "TIMEOUT"
	ProbeErrorDNS     ProbeErrorType = "DNS_ERROR"
	ProbeErrorNetwork ProbeErrorType = "NETWORK_ERROR"
)

// ProbeErrorHTTP builds the error type for a rejected status code,
// e.g. HTTP_404.
func ProbeErrorHTTP(statusCode int) ProbeErrorType {
	return ProbeErrorType(fmt.Sprintf("HTTP_%d", statusCode))
}

// ReachabilityVerdict is the cached outcome of probing a URL.
type ReachabilityVerdict struct {
	Reachable      bool           `json:"reachable"`
	StatusCode     int            `json:"statusCode,omitempty"`
	ResponseTimeMs int64          `json:"responseTimeMs,omitempty"`
	ContentType    string         `json:"contentType,omitempty"`
	ErrorType      ProbeErrorType `json:"errorType,omitempty"`
}
