package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dispatch_bot_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directionsFixture = `{
  "status": "OK",
  "routes": [{
    "legs": [{
      "distance": {"text": "5,2 km", "value": 5200},
      "duration": {"text": "14 minutos", "value": 840},
      "start_address": "Rua A, 10 - Curitiba",
      "end_address": "Rua das Flores, 123 - Curitiba",
      "steps": [
        {"html_instructions": "Siga na direção <b>norte</b> na <b>Rua A</b>", "distance": {"text": "200 m"}},
        {"html_instructions": "Vire à <b>direita</b><div style=\"font-size:0.9em\">Destino à esquerda</div>", "distance": {"text": "1,1 km"}}
      ]
    }]
  }]
}`

func TestRouteParsesDirections(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(directionsFixture))
	}))
	defer srv.Close()

	s := NewServiceWithBaseURL(srv.URL, "key-1", srv.Client(), logger.Discard())
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	r := s.Route(context.Background(), "Rua A, 10", "Rua das Flores, 123")
	require.False(t, r.Degraded())
	assert.Contains(t, query, "key=key-1")
	assert.Equal(t, "5,2 km", r.DistanceText)
	assert.Equal(t, "14 minutos", r.DurationText)
	assert.Equal(t, now.Add(14*time.Minute), r.ETA)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, "Siga na direção norte na Rua A (200 m)", r.Steps[0])
	assert.Equal(t, "Vire à direita Destino à esquerda (1,1 km)", r.Steps[1])
	assert.True(t, strings.HasPrefix(r.MapLink, "https://www.google.com/maps/dir/?"))
}

func TestRouteDegradesOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	}))
	defer srv.Close()

	s := NewServiceWithBaseURL(srv.URL, "key-1", srv.Client(), logger.Discard())
	r := s.Route(context.Background(), "a", "Rua das Flores, 123")
	assert.True(t, r.Degraded())
	assert.Equal(t, SearchLink("Rua das Flores, 123"), r.MapLink)
}

func TestRouteWithoutKeyDegrades(t *testing.T) {
	s := NewServiceWithBaseURL("http://unused", "", http.DefaultClient, logger.Discard())
	r := s.Route(context.Background(), "a", "b")
	assert.ErrorIs(t, r.Err, errNoAPIKey)
}
