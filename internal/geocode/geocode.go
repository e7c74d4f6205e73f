package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"meetpoint/internal/status"
	"meetpoint/models"
)

// Geocoder resolves between free-text addresses and coordinates. Either
// direction may come back empty (nil / "") when the provider finds nothing.
type Geocoder interface {
	Forward(ctx context.Context, address string) (*models.Location, error)
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// Client is a Google-Geocoding-style HTTP client.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type geocodeReply struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *Client) Forward(ctx context.Context, address string) (*models.Location, error) {
	if address == "" {
		return nil, fmt.Errorf("empty address: %w", status.ErrInvalidArgument)
	}

	reply, err := c.query(ctx, url.Values{"address": []string{address}})
	if err != nil {
		return nil, err
	}
	if len(reply.Results) == 0 {
		return nil, nil
	}

	first := reply.Results[0]
	return &models.Location{
		Lat:     first.Geometry.Location.Lat,
		Lng:     first.Geometry.Location.Lng,
		Kind:    models.LocationManual,
		Address: first.FormattedAddress,
	}, nil
}

func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	reply, err := c.query(ctx, url.Values{"latlng": []string{fmt.Sprintf("%f,%f", lat, lng)}})
	if err != nil {
		return "", err
	}
	if len(reply.Results) == 0 {
		return "", nil
	}
	return reply.Results[0].FormattedAddress, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*geocodeReply, error) {
	params.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s/json?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: http.NewRequestWithContext: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %v: %w", err, status.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocode: resp.StatusCode: %d, resp.Body: %s: %w",
			resp.StatusCode, rbody, status.ErrUpstreamUnavailable)
	}

	var reply geocodeReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("geocode: json.Decode: %w", err)
	}

	switch reply.Status {
	case "OK", "ZERO_RESULTS":
		return &reply, nil
	default:
		return nil, fmt.Errorf("geocode: provider status %s: %w", reply.Status, status.ErrUpstreamUnavailable)
	}
}
