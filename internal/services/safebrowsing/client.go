// Package safebrowsing checks URLs against the Google Safe Browsing v4
// threat lists.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/httpclient"
	"github.com/ternarybob/curtail/internal/interfaces"
)

const defaultAPIURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Client calls the threatMatches:find endpoint. A URL is safe when the
// response carries no matches.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewClient creates a Safe Browsing client from config.
func NewClient(config common.SafeBrowsingConfig, logger arbor.ILogger) *Client {
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &Client{
		apiKey:     config.APIKey,
		apiURL:     apiURL,
		httpClient: httpclient.NewDefaultHTTPClient(common.ParseDuration(config.Timeout, 10*time.Second)),
		logger:     logger,
	}
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type findResponse struct {
	Matches []json.RawMessage `json:"matches"`
}

// Check reports whether the URL is absent from every threat list. Network
// and API failures return an error so the caller can retry.
func (c *Client) Check(ctx context.Context, targetURL string) (bool, error) {
	payload := findRequest{
		Client: clientInfo{
			ClientID:      "curtail",
			ClientVersion: common.Version,
		},
		ThreatInfo: threatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: targetURL}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal safe browsing request: %w", err)
	}

	endpoint := c.apiURL + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build safe browsing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", interfaces.ErrSafeBrowsing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("Safe browsing API returned non-success status")
		return false, fmt.Errorf("%w: status %d", interfaces.ErrSafeBrowsing, resp.StatusCode)
	}

	var result findResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("%w: failed to decode response: %v", interfaces.ErrSafeBrowsing, err)
	}

	safe := len(result.Matches) == 0
	c.logger.Debug().
		Str("url", targetURL).
		Bool("safe", safe).
		Int("matches", len(result.Matches)).
		Msg("Safe browsing check complete")

	return safe, nil
}

// Ensure Client implements the SafetyProber interface
var _ interfaces.SafetyProber = (*Client)(nil)
