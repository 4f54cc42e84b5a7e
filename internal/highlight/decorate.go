package highlight

import (
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/overlay"
)

// Draw order. Renderers bring higher values to the front.
const (
	zPolyline          = 100
	zMarker            = 200
	zEmphasizedLine    = 300
	zEmphasizedMarker  = 400
	zOrigin            = 500
	defaultMarkerAlpha = 1.0
)

// ElementStyle is the effective style of one map element for a highlight state
type ElementStyle struct {
	Color      string  `json:"color"`
	Weight     float64 `json:"weight,omitempty"`
	Opacity    float64 `json:"opacity"`
	ZIndex     int     `json:"z_index"`
	Emphasized bool    `json:"emphasized"`
	Dimmed     bool    `json:"dimmed"`
}

// MarkerView pairs a base marker with its effective style
type MarkerView struct {
	Marker *models.Marker `json:"marker"`
	Style  ElementStyle   `json:"style"`
}

// PolylineView pairs a base polyline with its effective style
type PolylineView struct {
	Polyline *models.Polyline `json:"polyline"`
	Style    ElementStyle     `json:"style"`
}

// View is an overlay model decorated for one highlight state. The base model
// is shared, never modified.
type View struct {
	Origin    *MarkerView           `json:"origin"`
	Markers   []MarkerView          `json:"markers"`
	Polylines []PolylineView        `json:"polylines"`
	Highlight models.HighlightState `json:"highlight"`
	Empty     bool                  `json:"empty"`
}

// Decorate computes per-element styles for state. The highlighted
// assignment's polyline and its destination marker are emphasized; every
// other element is dimmed while a highlight is active. The origin marker
// keeps its fixed style.
func Decorate(model *models.OverlayModel, resolved []models.ResolvedAssignment, state models.HighlightState, style overlay.Style) View {
	style = style.WithDefaults()
	view := View{
		Markers:   make([]MarkerView, 0, len(model.Destinations)),
		Polylines: make([]PolylineView, 0, len(model.Polylines)),
		Highlight: state,
		Empty:     model.Empty,
	}

	emphasizedDest := -1
	if state.Active && state.ActiveIndex >= 0 && state.ActiveIndex < len(resolved) {
		if r := resolved[state.ActiveIndex]; r.IsResolved() {
			emphasizedDest = r.DestinationIndex
		}
	}

	if model.Origin != nil {
		view.Origin = &MarkerView{
			Marker: model.Origin,
			Style: ElementStyle{
				Color:   model.Origin.Color,
				Opacity: defaultMarkerAlpha,
				ZIndex:  zOrigin,
			},
		}
	}

	for _, m := range model.Destinations {
		s := ElementStyle{Color: m.Color, Opacity: defaultMarkerAlpha, ZIndex: zMarker}
		switch {
		case state.Active && m.DestinationIndex == emphasizedDest:
			s.Color = style.HighlightColor
			s.ZIndex = zEmphasizedMarker
			s.Emphasized = true
		case state.Active:
			s.Opacity = style.DimOpacity
			s.Dimmed = true
		}
		view.Markers = append(view.Markers, MarkerView{Marker: m, Style: s})
	}

	for _, p := range model.Polylines {
		s := ElementStyle{
			Color:   p.Style.Color,
			Weight:  p.Style.Weight,
			Opacity: p.Style.Opacity,
			ZIndex:  zPolyline,
		}
		switch {
		case state.Is(p.AssignmentIndex):
			s.Color = style.HighlightColor
			s.Weight = style.HighlightWeight
			s.Opacity = 1
			s.ZIndex = zEmphasizedLine
			s.Emphasized = true
		case state.Active:
			s.Opacity = style.DimOpacity
			s.Dimmed = true
		}
		view.Polylines = append(view.Polylines, PolylineView{Polyline: p, Style: s})
	}

	return view
}

// EmphasizedPolyline returns the emphasized polyline view, if any
func (v View) EmphasizedPolyline() (PolylineView, bool) {
	for _, p := range v.Polylines {
		if p.Style.Emphasized {
			return p, true
		}
	}
	return PolylineView{}, false
}
