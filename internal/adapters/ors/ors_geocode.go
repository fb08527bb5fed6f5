package ors

import (
	"context"
	"encoding/json"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/platform/obs"
	"net/http"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []any `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves one address using OpenRouteService (/geocode/search).
//
// A response without features, or whose first feature does not carry a
// numeric [lon, lat] pair, is "no match" and yields (nil, nil).
func (c *Client) Geocode(
	ctx context.Context,
	address string,
	cred domain.Credential,
) (_ *domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	norm := domain.NormalizeAddress(address)
	if norm == "" {
		return nil, &domain.InputError{Reason: "address is empty"}
	}

	endpoint := c.baseURL + "/geocode/search"

	resp, err := c.doWithRetry(ctx, "ors geocode", c.geocodePace, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, cred)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", norm)
		q.Set("size", "1")
		if c.country != "" {
			q.Set("boundary.country", c.country)
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "ors geocode", Err: err}
	}

	var decoded geocodeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.ErrorContext(ctx, "unexpected geocode payload", "err", err, "payload", string(body))
		return nil, &domain.ProtocolError{Op: "ors geocode", Reason: "decode response: " + err.Error(), Payload: string(body)}
	}

	if len(decoded.Features) == 0 {
		return nil, nil
	}

	raw := decoded.Features[0].Geometry.Coordinates
	if len(raw) != 2 {
		return nil, nil
	}
	lon, okLon := raw[0].(float64)
	lat, okLat := raw[1].(float64)
	if !okLon || !okLat {
		return nil, nil
	}

	coords := domain.Coordinates{Lon: lon, Lat: lat}
	if !coords.Valid() {
		return nil, nil
	}

	return &coords, nil
}
