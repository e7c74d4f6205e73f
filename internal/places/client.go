package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"meetpoint/internal/status"
)

// Client talks to a Google-Places-style nearby search endpoint. One request
// is issued per category; partial failures degrade to whatever categories
// answered.
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

type nearbyReply struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string `json:"place_id"`
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Rating     float64  `json:"rating"`
		PriceLevel int      `json:"price_level"`
		Types      []string `json:"types"`
		Photos     []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"results"`
}

func (c *Client) SearchNearby(ctx context.Context, lat, lng float64, radiusMeters int, categories []string) ([]Place, error) {
	if len(categories) == 0 {
		categories = []string{"restaurant"}
	}

	var merged []Place
	var lastErr error
	for _, category := range categories {
		results, err := c.searchCategory(ctx, lat, lng, radiusMeters, category)
		if err != nil {
			log.Printf("places: category %q search failed: %v", category, err)
			lastErr = err
			continue
		}
		merged = append(merged, results...)
	}

	if merged == nil && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

func (c *Client) searchCategory(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Place, error) {
	query := url.Values{
		"location": []string{fmt.Sprintf("%f,%f", lat, lng)},
		"radius":   []string{strconv.Itoa(radiusMeters)},
		"type":     []string{category},
		"key":      []string{c.apiKey},
	}

	endpoint := fmt.Sprintf("%s/nearbysearch/json?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("searchCategory: http.NewRequestWithContext: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchCategory: %v: %w", err, status.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("searchCategory: resp.StatusCode: %d, resp.Body: %s: %w",
			resp.StatusCode, rbody, status.ErrUpstreamUnavailable)
	}

	var reply nearbyReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("searchCategory: json.Decode: %w", err)
	}

	switch reply.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("searchCategory: provider status %s: %w", reply.Status, status.ErrUpstreamUnavailable)
	}

	places := make([]Place, 0, len(reply.Results))
	for _, r := range reply.Results {
		p := Place{
			ID:         r.PlaceID,
			Name:       r.Name,
			Address:    r.Vicinity,
			Lat:        r.Geometry.Location.Lat,
			Lng:        r.Geometry.Location.Lng,
			Rating:     r.Rating,
			PriceLevel: r.PriceLevel,
			Categories: r.Types,
		}
		if len(r.Photos) > 0 {
			p.PhotoRef = r.Photos[0].PhotoReference
		}
		places = append(places, p)
	}
	return places, nil
}
