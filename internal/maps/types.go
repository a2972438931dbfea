package maps

import "time"

// Route is a driving route, or a degraded link when Err is set.
type Route struct {
	DistanceText string
	DurationText string
	Duration     time.Duration
	ETA          time.Time
	StartAddress string
	EndAddress   string
	Steps        []string
	MapLink      string
	Err          error
}

// Degraded reports whether the route carries only a map link.
func (r Route) Degraded() bool {
	return r.Err != nil
}

// directionsResponse mirrors the relevant parts of the Directions API payload.
type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []directionsLeg `json:"legs"`
	} `json:"routes"`
}

type directionsLeg struct {
	Distance     textValue `json:"distance"`
	Duration     textValue `json:"duration"`
	StartAddress string    `json:"start_address"`
	EndAddress   string    `json:"end_address"`
	Steps        []struct {
		HTMLInstructions string    `json:"html_instructions"`
		Distance         textValue `json:"distance"`
	} `json:"steps"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int64  `json:"value"`
}
