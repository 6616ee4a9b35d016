package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/httpclient"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
)

// IPAPIProvider is the primary geolocation source (ipapi.co). Requests
// pass through a client-side rate limiter so the free tier is never
// hammered by a click burst.
type IPAPIProvider struct {
	baseURL    string
	path       string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewIPAPIProvider creates the primary provider from config.
func NewIPAPIProvider(config common.GeoProviderConfig, logger arbor.ILogger) *IPAPIProvider {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 5
	}

	return &IPAPIProvider{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		path:       config.Path,
		apiKey:     config.APIKey,
		httpClient: httpclient.NewDefaultHTTPClient(common.ParseDuration(config.Timeout, 3*time.Second)),
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		logger:     logger,
	}
}

// Name identifies the provider in logs.
func (p *IPAPIProvider) Name() string { return "ipapi.co" }

// ipapiResponse mirrors the fields we keep from the ipapi.co payload.
// Errors arrive in-band as {"error":true,"reason":...} with HTTP 200.
type ipapiResponse struct {
	Error       bool    `json:"error"`
	Reason      string  `json:"reason"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	Org         string  `json:"org"`
}

// Resolve looks up the IP. Any transport, decode or in-band error is
// returned so the caller can fall through to the next provider.
func (p *IPAPIProvider) Resolve(ctx context.Context, ip string) (*models.GeoDetails, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	endpoint := p.baseURL + strings.ReplaceAll(p.path, "{ip}", ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo provider returned status %d", resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}
	if body.Error {
		return nil, fmt.Errorf("geo provider error: %s", body.Reason)
	}
	if body.CountryCode == "" {
		return nil, fmt.Errorf("geo provider returned no country for %s", ip)
	}

	return &models.GeoDetails{
		CountryCode:  body.CountryCode,
		CountryName:  body.CountryName,
		Region:       body.Region,
		City:         body.City,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		Timezone:     body.Timezone,
		Organization: body.Org,
	}, nil
}

// Ensure IPAPIProvider implements the GeoProvider interface
var _ interfaces.GeoProvider = (*IPAPIProvider)(nil)
