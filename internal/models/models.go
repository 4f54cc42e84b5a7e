package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MaxVisibleSolutions is how many ranked solutions the viewer ever shows
const MaxVisibleSolutions = 3

// Ref is a weak identifier coming from the optimizer or the geographic dataset.
// Upstream data mixes numeric and string ids, so both JSON forms are accepted.
// The zero value means the identifier is absent.
type Ref string

// UnmarshalJSON accepts a JSON string, number or null
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ref must be a string or number: %w", err)
	}
	// Normalise integral floats so 7 and 7.0 refer to the same thing
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*r = Ref(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*r = Ref(n.String())
	return nil
}

// IsZero reports whether the reference is absent
func (r Ref) IsZero() bool {
	return r == ""
}

// LatLng represents a geographic point
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoNode is an origin or destination of the dataset
type GeoNode struct {
	ID         Ref     `json:"id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Name       string  `json:"name"`
	Population *int    `json:"population,omitempty"`
}

// Position returns the coordinates of the node
func (n *GeoNode) Position() LatLng {
	return LatLng{Lat: n.Lat, Lng: n.Lng}
}

// RouteGeometry is one candidate route from the origin to a destination
type RouteGeometry struct {
	ID             Ref      `json:"id"`
	DestinationID  Ref      `json:"destinationId"`
	Points         []LatLng `json:"points"`
	DistanceMeters float64  `json:"distanceMeters"`
	Kind           string   `json:"kind"`
}

// DistanceKm returns the route distance in kilometers. Routes delivered
// without a distance fall back to the length of their point sequence.
func (g *RouteGeometry) DistanceKm() float64 {
	if g.DistanceMeters > 0 {
		return g.DistanceMeters / 1000
	}
	return PathLengthMeters(g.Points) / 1000
}

// GeoDataset holds the origin, the ordered destinations and the candidate
// routes per destination. RoutesByDestination[i] belongs to Destinations[i].
type GeoDataset struct {
	Origin              *GeoNode          `json:"origin"`
	Destinations        []GeoNode         `json:"destinations"`
	RoutesByDestination [][]RouteGeometry `json:"routesByDestination"`
}

// IsEmpty reports whether there is nothing to draw
func (g *GeoDataset) IsEmpty() bool {
	return g == nil || (g.Origin == nil && len(g.Destinations) == 0)
}

// RoutesFor returns the candidate routes of the destination at index i
func (g *GeoDataset) RoutesFor(i int) []RouteGeometry {
	if i < 0 || i >= len(g.RoutesByDestination) {
		return nil
	}
	return g.RoutesByDestination[i]
}

// SupplyItem is one line of the supplies carried by an assignment
type SupplyItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	WeightKg float64 `json:"weightKg"`
}

// Assignment is one vehicle-to-route decision of the optimizer
type Assignment struct {
	VehicleID       Ref          `json:"vehicleId"`
	RouteRef        Ref          `json:"routeRef,omitempty"`
	DestinationName string       `json:"destinationName,omitempty"`
	DistanceKm      float64      `json:"distanceKm"`
	WeightKg        float64      `json:"weightKg"`
	FuelLiters      float64      `json:"fuelLiters"`
	SuppliesDetail  []SupplyItem `json:"suppliesDetail,omitempty"`
}

// SolutionSummary contains aggregate figures reported for a solution
type SolutionSummary struct {
	TotalDistanceKm float64 `json:"totalDistanceKm"`
	TotalWeightKg   float64 `json:"totalWeightKg"`
	TotalFuelLiters float64 `json:"totalFuelLiters"`
	VehiclesUsed    int     `json:"vehiclesUsed"`
	Note            string  `json:"note,omitempty"`
}

// Solution is one ranked candidate produced by the optimizer
type Solution struct {
	Rank         int             `json:"rank"`
	FitnessScore float64         `json:"fitnessScore"`
	Assignments  []Assignment    `json:"assignments"`
	Summary      SolutionSummary `json:"summary"`
}

// Totals derives the summary figures from the assignments. The note of the
// reported summary is kept.
func (s *Solution) Totals() SolutionSummary {
	out := SolutionSummary{Note: s.Summary.Note}
	vehicles := make(map[Ref]struct{}, len(s.Assignments))
	for _, a := range s.Assignments {
		out.TotalDistanceKm += a.DistanceKm
		out.TotalWeightKg += a.WeightKg
		out.TotalFuelLiters += a.FuelLiters
		vehicles[a.VehicleID] = struct{}{}
	}
	out.VehiclesUsed = len(vehicles)
	return out
}

// SolutionSet is the ranked optimizer output, best fitness first
type SolutionSet struct {
	Solutions []Solution `json:"solutions"`
}

// Visible returns the solutions the viewer works with
func (s *SolutionSet) Visible() []Solution {
	if s == nil {
		return nil
	}
	if len(s.Solutions) > MaxVisibleSolutions {
		return s.Solutions[:MaxVisibleSolutions]
	}
	return s.Solutions
}

// Run is one ingested optimization run
type Run struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	CreatedAt time.Time   `json:"created_at"`
	Geo       GeoDataset  `json:"geo"`
	Solutions SolutionSet `json:"solutions"`
}

// RunSummary is the listing form of a run
type RunSummary struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	CreatedAt        time.Time `json:"created_at"`
	DestinationCount int       `json:"destination_count"`
	SolutionCount    int       `json:"solution_count"`
}
