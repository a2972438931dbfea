// Package maps computes driving routes for technicians through the Google
// Directions API and degrades to a plain map link when that is unavailable.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/logger"

	"golang.org/x/net/html"
)

const directionsURL = "https://maps.googleapis.com/maps/api/directions/json"

var errNoAPIKey = errors.New("routing api key not configured")

type Service struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     *logger.Logger
	now     func() time.Time
}

func NewService(cfg config.RoutingConfig, log *logger.Logger) *Service {
	return NewServiceWithBaseURL(directionsURL, cfg.GetGoogleMapsAPIKey(), &http.Client{Timeout: 8 * time.Second}, log)
}

// NewServiceWithBaseURL points the service at another Directions endpoint.
func NewServiceWithBaseURL(baseURL, apiKey string, client *http.Client, log *logger.Logger) *Service {
	return &Service{client: client, baseURL: baseURL, apiKey: apiKey, log: log, now: time.Now}
}

// Route never fails: adapter errors come back as a degraded Route.
func (s *Service) Route(ctx context.Context, origin, destination string) Route {
	route, err := s.directions(ctx, origin, destination)
	if err != nil {
		s.log.WithContext(ctx).Warn("directions unavailable", "error", err)
		return Route{Err: err, MapLink: SearchLink(destination)}
	}
	return route
}

func (s *Service) directions(ctx context.Context, origin, destination string) (Route, error) {
	if s.apiKey == "" {
		return Route{}, errNoAPIKey
	}

	params := url.Values{}
	params.Add("origin", origin)
	params.Add("destination", destination)
	params.Add("mode", "driving")
	params.Add("language", "pt-BR")
	params.Add("region", "br")
	params.Add("departure_time", "now")
	params.Add("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Route{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("directions request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var payload directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Route{}, fmt.Errorf("decode directions: %w", err)
	}
	if payload.Status != "OK" || len(payload.Routes) == 0 || len(payload.Routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("directions status %s: %s", payload.Status, payload.ErrorMessage)
	}

	leg := payload.Routes[0].Legs[0]
	duration := time.Duration(leg.Duration.Value) * time.Second
	route := Route{
		DistanceText: leg.Distance.Text,
		DurationText: leg.Duration.Text,
		Duration:     duration,
		ETA:          s.now().Add(duration),
		StartAddress: leg.StartAddress,
		EndAddress:   leg.EndAddress,
		Steps:        make([]string, 0, len(leg.Steps)),
		MapLink:      DirectionsLink(origin, destination),
	}
	for _, step := range leg.Steps {
		text := plainText(step.HTMLInstructions)
		if step.Distance.Text != "" {
			text = fmt.Sprintf("%s (%s)", text, step.Distance.Text)
		}
		route.Steps = append(route.Steps, text)
	}
	return route, nil
}

// DirectionsLink opens turn-by-turn navigation in Google Maps.
func DirectionsLink(origin, destination string) string {
	params := url.Values{}
	params.Add("api", "1")
	params.Add("origin", origin)
	params.Add("destination", destination)
	params.Add("travelmode", "driving")
	return "https://www.google.com/maps/dir/?" + params.Encode()
}

// SearchLink opens a map search for the destination.
func SearchLink(destination string) string {
	params := url.Values{}
	params.Add("api", "1")
	params.Add("query", destination)
	return "https://www.google.com/maps/search/?" + params.Encode()
}

// plainText drops the markup Google embeds in step instructions.
func plainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "div" {
				b.WriteString(" ")
			}
		}
	}
}
