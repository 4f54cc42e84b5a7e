package models

// MarkerKind distinguishes the origin from destination markers
type MarkerKind string

const (
	MarkerOrigin      MarkerKind = "origin"
	MarkerDestination MarkerKind = "destination"
)

// Marker is a render-agnostic map marker
type Marker struct {
	ID               string     `json:"id"`
	Kind             MarkerKind `json:"kind"`
	Position         LatLng     `json:"position"`
	Color            string     `json:"color"`
	Label            string     `json:"label"`
	PopupText        string     `json:"popup_text"`
	Pulsing          bool       `json:"pulsing,omitempty"`
	DestinationIndex int        `json:"destination_index"`
	AssignmentIndex  int        `json:"assignment_index"` // -1 when no assignment serves it
}

// LineStyle is the drawing style of a polyline
type LineStyle struct {
	Color   string  `json:"color"`
	Weight  float64 `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// Polyline is a render-agnostic route line
type Polyline struct {
	ID               string    `json:"id"`
	Points           []LatLng  `json:"points"`
	Style            LineStyle `json:"style"`
	DestinationIndex int       `json:"destination_index"`
	AssignmentIndex  int       `json:"assignment_index"`
	RouteID          Ref       `json:"route_id"`
}

// OverlayModel is everything a map surface draws for one solution
type OverlayModel struct {
	Origin       *Marker     `json:"origin"`
	Destinations []*Marker   `json:"destinations"`
	Polylines    []*Polyline `json:"polylines"`
	Empty        bool        `json:"empty"`
	// Malformed lists assignment indexes whose route had fewer than 2 points
	Malformed []int `json:"malformed,omitempty"`
}

// MarkerFor returns the destination marker at index i, or nil
func (m *OverlayModel) MarkerFor(i int) *Marker {
	if m == nil || i < 0 || i >= len(m.Destinations) {
		return nil
	}
	return m.Destinations[i]
}
