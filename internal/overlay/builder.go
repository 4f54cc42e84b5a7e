package overlay

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"relief-route-viewer/internal/models"
)

// Marker and polyline ids. Renderers diff on these.
const OriginMarkerID = "origin"

// DestinationMarkerID returns the id of the marker for destination i
func DestinationMarkerID(i int) string {
	return "dest:" + strconv.Itoa(i)
}

// PolylineID returns the id of the polyline drawn for assignment i
func PolylineID(i int) string {
	return "route:" + strconv.Itoa(i)
}

// Builder turns resolved assignments into an overlay model. It remembers the
// markers it handed out and returns the same pointer for a marker whose
// content did not change, so renderers keep their marker objects across
// rebuilds. A Builder is not safe for concurrent use.
type Builder struct {
	style   Style
	markers map[string]*models.Marker
}

// NewBuilder creates a builder with the given style
func NewBuilder(style Style) *Builder {
	return &Builder{
		style:   style.WithDefaults(),
		markers: make(map[string]*models.Marker),
	}
}

// Style returns the style the builder draws with
func (b *Builder) Style() Style {
	return b.style
}

// Build builds an overlay using the given palette and default style
func Build(resolved []models.ResolvedAssignment, geo *models.GeoDataset, palette []string) *models.OverlayModel {
	style := DefaultStyle()
	style.Palette = palette
	return NewBuilder(style).Build(resolved, geo)
}

// Build emits the origin marker, one marker per destination and one polyline
// per resolved assignment with a usable geometry.
func (b *Builder) Build(resolved []models.ResolvedAssignment, geo *models.GeoDataset) *models.OverlayModel {
	model := &models.OverlayModel{
		Destinations: []*models.Marker{},
		Polylines:    []*models.Polyline{},
	}
	if geo.IsEmpty() {
		model.Empty = true
		return model
	}

	if geo.Origin != nil {
		model.Origin = b.intern(models.Marker{
			ID:               OriginMarkerID,
			Kind:             models.MarkerOrigin,
			Position:         geo.Origin.Position(),
			Color:            b.style.OriginColor,
			PopupText:        geo.Origin.Name,
			Pulsing:          true,
			DestinationIndex: -1,
			AssignmentIndex:  -1,
		})
	}

	served := servingAssignments(resolved, len(geo.Destinations))

	for d := range geo.Destinations {
		dest := &geo.Destinations[d]
		marker := models.Marker{
			ID:               DestinationMarkerID(d),
			Kind:             models.MarkerDestination,
			Position:         dest.Position(),
			Color:            b.style.NeutralColor,
			Label:            strconv.Itoa(d + 1),
			PopupText:        popupText(dest, served[d]),
			DestinationIndex: d,
			AssignmentIndex:  -1,
		}
		// Several assignments may serve one destination; the first one colors it
		if len(served[d]) > 0 {
			marker.AssignmentIndex = served[d][0].Index
			marker.Color = PaletteColor(b.style.Palette, served[d][0].Index)
		}
		model.Destinations = append(model.Destinations, b.intern(marker))

		for _, r := range served[d] {
			if r.Route == nil {
				continue
			}
			if len(r.Route.Points) < 2 {
				model.Malformed = append(model.Malformed, r.Index)
				continue
			}
			model.Polylines = append(model.Polylines, &models.Polyline{
				ID:     PolylineID(r.Index),
				Points: r.Route.Points,
				Style: models.LineStyle{
					Color:   PaletteColor(b.style.Palette, r.Index),
					Weight:  b.style.LineWeight,
					Opacity: b.style.LineOpacity,
				},
				DestinationIndex: d,
				AssignmentIndex:  r.Index,
				RouteID:          r.Route.ID,
			})
		}
	}

	slices.Sort(model.Malformed)
	return model
}

// servingAssignments groups resolved assignments by destination index,
// each group ordered by assignment index
func servingAssignments(resolved []models.ResolvedAssignment, destinations int) map[int][]models.ResolvedAssignment {
	usable := lo.Filter(resolved, func(r models.ResolvedAssignment, _ int) bool {
		return r.IsResolved() && r.DestinationIndex >= 0 && r.DestinationIndex < destinations
	})
	groups := lo.GroupBy(usable, func(r models.ResolvedAssignment) int {
		return r.DestinationIndex
	})
	for d := range groups {
		slices.SortStableFunc(groups[d], func(a, b models.ResolvedAssignment) int {
			return a.Index - b.Index
		})
	}
	return groups
}

func popupText(dest *models.GeoNode, served []models.ResolvedAssignment) string {
	var sb strings.Builder
	sb.WriteString(dest.Name)
	if dest.Population != nil {
		fmt.Fprintf(&sb, "\nPopulation: %d", *dest.Population)
	}
	if len(served) == 0 {
		sb.WriteString("\nNo vehicle assigned")
		return sb.String()
	}
	vehicles := lo.Map(served, func(r models.ResolvedAssignment, _ int) string {
		return string(r.Assignment.VehicleID)
	})
	fmt.Fprintf(&sb, "\nVehicles: %s", strings.Join(vehicles, ", "))
	return sb.String()
}

// intern returns the previously built marker when its content is unchanged
func (b *Builder) intern(m models.Marker) *models.Marker {
	if prev, ok := b.markers[m.ID]; ok && *prev == m {
		return prev
	}
	stored := m
	b.markers[m.ID] = &stored
	return &stored
}
