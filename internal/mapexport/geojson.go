package mapexport

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"relief-route-viewer/internal/highlight"
	"relief-route-viewer/internal/models"
)

// Feature property keys
const (
	PropID         = "id"
	PropKind       = "kind"
	PropColor      = "color"
	PropWeight     = "weight"
	PropOpacity    = "opacity"
	PropZIndex     = "z_index"
	PropLabel      = "label"
	PropPopup      = "popup"
	PropPulsing    = "pulsing"
	PropEmphasized = "emphasized"
	PropDimmed     = "dimmed"
	PropAssignment = "assignment_index"
	PropRouteID    = "route_id"
)

const kindRoute = "route"

func point(p models.LatLng) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FeatureCollection converts a decorated view into GeoJSON. Markers become
// Point features and routes LineString features, each carrying its effective
// style as properties. Routes come first so that markers draw on top in
// renderers that paint in document order.
func FeatureCollection(view highlight.View) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, p := range view.Polylines {
		line := make(orb.LineString, 0, len(p.Polyline.Points))
		for _, pt := range p.Polyline.Points {
			line = append(line, point(pt))
		}
		f := geojson.NewFeature(line)
		f.ID = p.Polyline.ID
		f.Properties[PropID] = p.Polyline.ID
		f.Properties[PropKind] = kindRoute
		f.Properties[PropAssignment] = p.Polyline.AssignmentIndex
		f.Properties[PropRouteID] = string(p.Polyline.RouteID)
		f.Properties[PropWeight] = p.Style.Weight
		styleProps(f, p.Style)
		fc.Append(f)
	}

	for _, m := range view.Markers {
		fc.Append(markerFeature(m))
	}
	if view.Origin != nil {
		fc.Append(markerFeature(*view.Origin))
	}
	return fc
}

func markerFeature(m highlight.MarkerView) *geojson.Feature {
	f := geojson.NewFeature(point(m.Marker.Position))
	f.ID = m.Marker.ID
	f.Properties[PropID] = m.Marker.ID
	f.Properties[PropKind] = string(m.Marker.Kind)
	f.Properties[PropLabel] = m.Marker.Label
	f.Properties[PropPopup] = m.Marker.PopupText
	f.Properties[PropAssignment] = m.Marker.AssignmentIndex
	if m.Marker.Pulsing {
		f.Properties[PropPulsing] = true
	}
	styleProps(f, m.Style)
	return f
}

func styleProps(f *geojson.Feature, s highlight.ElementStyle) {
	f.Properties[PropColor] = s.Color
	f.Properties[PropOpacity] = s.Opacity
	f.Properties[PropZIndex] = s.ZIndex
	f.Properties[PropEmphasized] = s.Emphasized
	f.Properties[PropDimmed] = s.Dimmed
}
