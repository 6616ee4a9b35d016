package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/httpclient"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// FallbackProvider is the secondary geolocation source (ip-api.com),
// consulted only when the primary fails.
type FallbackProvider struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewFallbackProvider creates the fallback provider from config.
func NewFallbackProvider(config common.GeoFallbackConfig, logger arbor.ILogger) *FallbackProvider {
	return &FallbackProvider{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		path:       config.Path,
		httpClient: httpclient.NewDefaultHTTPClient(3 * time.Second),
		logger:     logger,
	}
}

// Name identifies the provider in logs.
func (p *FallbackProvider) Name() string { return "ip-api.com" }

// ipAPIResponse mirrors the ip-api.com payload. Failures arrive in-band
// as status "fail" with HTTP 200.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	CountryCode string  `json:"countryCode"`
	Country     string  `json:"country"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
}

// Resolve looks up the IP against ip-api.com.
func (p *FallbackProvider) Resolve(ctx context.Context, ip string) (*models.GeoDetails, error) {
	endpoint := p.baseURL + strings.ReplaceAll(p.path, "{ip}", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo provider returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("geo provider error: %s", body.Message)
	}
	if body.CountryCode == "" {
		return nil, fmt.Errorf("geo provider returned no country for %s", ip)
	}

	return &models.GeoDetails{
		CountryCode:  body.CountryCode,
		CountryName:  body.Country,
		Region:       body.RegionName,
		City:         body.City,
		Latitude:     body.Lat,
		Longitude:    body.Lon,
		Timezone:     body.Timezone,
		ISP:          body.ISP,
		Organization: body.Org,
	}, nil
}

// Ensure FallbackProvider implements the GeoProvider interface
var _ interfaces.GeoProvider = (*FallbackProvider)(nil)
