package viewer

import (
	"github.com/samber/lo"

	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/overlay"
)

// ListEntry is one row of the assignment list, styled for the current highlight
type ListEntry struct {
	Index           int                 `json:"index"`
	VehicleID       models.Ref          `json:"vehicle_id"`
	DestinationName string              `json:"destination_name"`
	RouteID         models.Ref          `json:"route_id,omitempty"`
	DistanceKm      float64             `json:"distance_km"`
	WeightKg        float64             `json:"weight_kg"`
	FuelLiters      float64             `json:"fuel_liters"`
	Supplies        []models.SupplyItem `json:"supplies,omitempty"`
	Confidence      models.Confidence   `json:"confidence"`
	Color           string              `json:"color"`
	Emphasized      bool                `json:"emphasized"`
	Dimmed          bool                `json:"dimmed"`
}

// List returns the rows of the assignment list. Row colors match the map:
// the palette color of the assignment, or the neutral color when it could
// not be resolved.
func (c *Controller) List() []ListEntry {
	style := c.builder.Style()
	state := c.coordinator.State()

	return lo.Map(c.Resolved(), func(r models.ResolvedAssignment, _ int) ListEntry {
		e := ListEntry{
			Index:           r.Index,
			VehicleID:       r.Assignment.VehicleID,
			DestinationName: r.Assignment.DestinationName,
			DistanceKm:      r.Assignment.DistanceKm,
			WeightKg:        r.Assignment.WeightKg,
			FuelLiters:      r.Assignment.FuelLiters,
			Supplies:        r.Assignment.SuppliesDetail,
			Confidence:      r.Confidence,
			Color:           style.NeutralColor,
			Emphasized:      state.Is(r.Index),
			Dimmed:          state.Active && !state.Is(r.Index),
		}
		if r.IsResolved() {
			e.DestinationName = r.Destination.Name
			e.Color = overlay.PaletteColor(style.Palette, r.Index)
		}
		if r.Route != nil {
			e.RouteID = r.Route.ID
		}
		return e
	})
}
