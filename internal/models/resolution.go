package models

import "fmt"

// Confidence tells which matching tier produced a resolution
type Confidence int

const (
	Exact Confidence = iota
	DistanceMatch
	NameMatch
	Unresolved
)

var confidenceNames = map[Confidence]string{
	Exact:         "exact",
	DistanceMatch: "distance_match",
	NameMatch:     "name_match",
	Unresolved:    "unresolved",
}

func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// MarshalText encodes the confidence as its name
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a confidence name
func (c *Confidence) UnmarshalText(text []byte) error {
	for k, v := range confidenceNames {
		if v == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown confidence %q", string(text))
}

// ResolvedAssignment pairs an assignment with the destination and route it
// was matched to. Destination and Route are nil when Confidence is Unresolved;
// Route may also be nil for a name match on a destination without routes.
type ResolvedAssignment struct {
	Index            int            `json:"index"`
	Assignment       Assignment     `json:"assignment"`
	Destination      *GeoNode       `json:"destination"`
	DestinationIndex int            `json:"destination_index"`
	Route            *RouteGeometry `json:"route"`
	RouteIndex       int            `json:"route_index"`
	Confidence       Confidence     `json:"confidence"`
}

// IsResolved reports whether the assignment was matched to a destination
func (r *ResolvedAssignment) IsResolved() bool {
	return r.Confidence != Unresolved && r.Destination != nil
}

// HighlightState is the single emphasized assignment shared by map and list
type HighlightState struct {
	ActiveIndex int  `json:"active_index"`
	Active      bool `json:"active"`
}

// NoHighlight returns the empty highlight state
func NoHighlight() HighlightState {
	return HighlightState{ActiveIndex: -1}
}

// Highlighted returns the state emphasizing assignment i
func Highlighted(i int) HighlightState {
	return HighlightState{ActiveIndex: i, Active: true}
}

// Is reports whether assignment i is the highlighted one
func (h HighlightState) Is(i int) bool {
	return h.Active && h.ActiveIndex == i
}
