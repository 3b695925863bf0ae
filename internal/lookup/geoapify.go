package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joshua-takyi/citylist/internal/models"
)

const (
	DefaultBaseURL     = "https://api.geoapify.com"
	defaultHTTPTimeout = 5 * time.Second
	maxBodyBytes       = 1 << 20
)

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeoapifyClient talks to the Geoapify places and place-details APIs.
type GeoapifyClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewGeoapifyClient(cfg Config) *GeoapifyClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &GeoapifyClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type featureCollection struct {
	Features []struct {
		Properties featureProperties `json:"properties"`
	} `json:"features"`
}

type featureProperties struct {
	PlaceID      string `json:"place_id"`
	Name         string `json:"name"`
	AddressLine1 string `json:"address_line1"`
	City         string `json:"city"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	Contact      struct {
		Phone string `json:"phone"`
	} `json:"contact"`
}

func (g *GeoapifyClient) Lookup(ctx context.Context, externalID string) (*models.PlaceDetails, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrNotFound
	}

	params := url.Values{}
	params.Set("id", externalID)

	var fc featureCollection
	if err := g.get(ctx, "lookup", "/v2/place-details", params, &fc); err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, ErrNotFound
	}

	props := fc.Features[0].Properties
	phone := props.Phone
	if phone == "" {
		phone = props.Contact.Phone
	}
	details := models.PlaceDetails{
		Name:    props.Name,
		Address: props.AddressLine1,
		City:    props.City,
		Phone:   phone,
		Website: props.Website,
	}.WithDefaults()
	return &details, nil
}

func (g *GeoapifyClient) Search(ctx context.Context, category string, area Circle, limit int) ([]Summary, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("category is required")
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("categories", category)
	params.Set("filter", fmt.Sprintf("circle:%s,%s,%d",
		strconv.FormatFloat(area.Lon, 'f', -1, 64),
		strconv.FormatFloat(area.Lat, 'f', -1, 64),
		area.RadiusM))
	params.Set("limit", strconv.Itoa(limit))

	var fc featureCollection
	if err := g.get(ctx, "search", "/v2/places", params, &fc); err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Properties.PlaceID == "" {
			continue
		}
		out = append(out, Summary{
			ExternalID: f.Properties.PlaceID,
			Name:       f.Properties.Name,
			Address:    f.Properties.AddressLine1,
			City:       f.Properties.City,
		})
	}
	return out, nil
}

func (g *GeoapifyClient) get(ctx context.Context, op, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params.Set("apiKey", g.apiKey)
	endpoint := g.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ProviderError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ProviderError{Op: op, Err: err}
		}
		return &ProviderError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
