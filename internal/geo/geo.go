// Package geo wraps a Kakao-style local search API for address lookup and
// computes straight-line distances.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quickbite/internal/apperr"
)

type Place struct {
	Address     string  `json:"address"`
	RoadAddress string  `json:"road_address,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewClient(baseURL, key string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type addressDoc struct {
	AddressName string `json:"address_name"`
	X           string `json:"x"`
	Y           string `json:"y"`
	RoadAddress *struct {
		AddressName string `json:"address_name"`
	} `json:"road_address"`
	Address *struct {
		AddressName string `json:"address_name"`
	} `json:"address"`
}

type searchResponse struct {
	Documents []addressDoc `json:"documents"`
}

// Geocode resolves a free-text address to coordinates, best match first.
func (c *Client) Geocode(ctx context.Context, query string) ([]Place, error) {
	q := url.Values{"query": {query}}
	var res searchResponse
	if err := c.get(ctx, "/v2/local/search/address.json", q, &res); err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, apperr.NotFoundf("no address matches %q", query)
	}
	out := make([]Place, 0, len(res.Documents))
	for _, d := range res.Documents {
		lng, errX := strconv.ParseFloat(d.X, 64)
		lat, errY := strconv.ParseFloat(d.Y, 64)
		if errX != nil || errY != nil {
			continue
		}
		p := Place{Address: d.AddressName, Lat: lat, Lng: lng}
		if d.RoadAddress != nil {
			p.RoadAddress = d.RoadAddress.AddressName
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("geocode: no usable coordinates for %q", query)
	}
	return out, nil
}

// Reverse resolves coordinates to the address at that point.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Place, error) {
	q := url.Values{
		"x": {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y": {strconv.FormatFloat(lat, 'f', -1, 64)},
	}
	var res searchResponse
	if err := c.get(ctx, "/v2/local/geo/coord2address.json", q, &res); err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, apperr.NotFoundf("no address at %f,%f", lat, lng)
	}
	d := res.Documents[0]
	p := &Place{Lat: lat, Lng: lng}
	if d.Address != nil {
		p.Address = d.Address.AddressName
	}
	if d.RoadAddress != nil {
		p.RoadAddress = d.RoadAddress.AddressName
	}
	if p.Address == "" {
		p.Address = p.RoadAddress
	}
	return p, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder %s failed with status: %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

const earthRadiusKm = 6371.0

// Distance is the great-circle distance in km between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
