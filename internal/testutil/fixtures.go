package testutil

import (
	"fmt"

	"relief-route-viewer/internal/models"
)

// Origin of the reference scenario (Mexico City)
var ScenarioOrigin = models.LatLng{Lat: 19.43, Lng: -99.13}

// Line returns a straight two-point route between a and b
func Line(a, b models.LatLng) []models.LatLng {
	return []models.LatLng{a, b}
}

// Route builds a route geometry from the origin to dest
func Route(id string, dest models.GeoNode, distanceMeters float64, kind string) models.RouteGeometry {
	return models.RouteGeometry{
		ID:             models.Ref(id),
		DestinationID:  dest.ID,
		Points:         Line(ScenarioOrigin, dest.Position()),
		DistanceMeters: distanceMeters,
		Kind:           kind,
	}
}

// ScenarioDataset returns the two-destination dataset used throughout the tests:
// D1 with one 10.0 km route, D2 with an 8.0 km and an 8.3 km route.
func ScenarioDataset() *models.GeoDataset {
	d1 := models.GeoNode{ID: "D1", Lat: 19.50, Lng: -99.00, Name: "Ecatepec"}
	d2 := models.GeoNode{ID: "D2", Lat: 19.10, Lng: -99.30, Name: "Tlalpan"}

	return &models.GeoDataset{
		Origin:       &models.GeoNode{ID: "O", Lat: ScenarioOrigin.Lat, Lng: ScenarioOrigin.Lng, Name: "Central depot"},
		Destinations: []models.GeoNode{d1, d2},
		RoutesByDestination: [][]models.RouteGeometry{
			{Route("r-d1-a", d1, 10000, "highway")},
			{Route("r-d2-a", d2, 8000, "highway"), Route("r-d2-b", d2, 8300, "local")},
		},
	}
}

// ScenarioSolution returns two assignments without route references
func ScenarioSolution() models.Solution {
	return models.Solution{
		Rank:         1,
		FitnessScore: 0.92,
		Assignments: []models.Assignment{
			{VehicleID: "1", DistanceKm: 10.0, WeightKg: 800, FuelLiters: 4.2},
			{VehicleID: "2", DistanceKm: 8.0, WeightKg: 450, FuelLiters: 3.1},
		},
	}
}

// GridDataset builds n destinations with routesPer routes each. Route k of
// destination d is (d*10 + k + 1) km long and has id "r-<d>-<k>".
func GridDataset(n, routesPer int) *models.GeoDataset {
	geo := &models.GeoDataset{
		Origin: &models.GeoNode{ID: "O", Lat: ScenarioOrigin.Lat, Lng: ScenarioOrigin.Lng, Name: "Depot"},
	}
	for d := 0; d < n; d++ {
		dest := models.GeoNode{
			ID:   models.Ref(fmt.Sprintf("D%d", d+1)),
			Lat:  ScenarioOrigin.Lat + float64(d+1)*0.01,
			Lng:  ScenarioOrigin.Lng + float64(d+1)*0.01,
			Name: fmt.Sprintf("Shelter %d", d+1),
		}
		geo.Destinations = append(geo.Destinations, dest)

		routes := make([]models.RouteGeometry, routesPer)
		for k := range routes {
			routes[k] = Route(fmt.Sprintf("r-%d-%d", d, k), dest, float64(d*10+k+1)*1000, "road")
		}
		geo.RoutesByDestination = append(geo.RoutesByDestination, routes)
	}
	return geo
}

// ExactAssignments returns one assignment per destination of a GridDataset,
// each referencing the first route of its destination by id
func ExactAssignments(n int) []models.Assignment {
	out := make([]models.Assignment, n)
	for i := range out {
		out[i] = models.Assignment{
			VehicleID:  models.Ref(fmt.Sprintf("%d", i+1)),
			RouteRef:   models.Ref(fmt.Sprintf("r-%d-0", i)),
			DistanceKm: float64(i*10 + 1),
		}
	}
	return out
}

// ScenarioSet wraps solutions into a solution set
func ScenarioSet(solutions ...models.Solution) *models.SolutionSet {
	return &models.SolutionSet{Solutions: solutions}
}
