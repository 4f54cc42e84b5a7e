package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/testutil"
)

func TestResolve_Scenario(t *testing.T) {
	geo := testutil.ScenarioDataset()
	solution := testutil.ScenarioSolution()

	resolved := New(geo).ResolveAll(solution.Assignments)
	require.Len(t, resolved, 2)

	first := resolved[0]
	assert.Equal(t, models.DistanceMatch, first.Confidence)
	assert.Equal(t, 0, first.DestinationIndex)
	assert.Equal(t, models.Ref("D1"), first.Destination.ID)
	assert.Equal(t, models.Ref("r-d1-a"), first.Route.ID)

	second := resolved[1]
	assert.Equal(t, models.DistanceMatch, second.Confidence)
	assert.Equal(t, 1, second.DestinationIndex)
	assert.Equal(t, models.Ref("r-d2-a"), second.Route.ID, "8.0 km assignment must not pick the 8.3 km route")
	assert.Equal(t, 0, second.RouteIndex)
}

func TestResolve_ExactIDBeatsCloserDistance(t *testing.T) {
	geo := testutil.ScenarioDataset()

	// The 10.0 km route of D1 is a perfect distance match, but the explicit
	// reference points at D2's 8.3 km route
	a := models.Assignment{VehicleID: "9", RouteRef: "r-d2-b", DistanceKm: 10.0}

	res := Resolve(geo, 0, a)

	assert.Equal(t, models.Exact, res.Confidence)
	assert.Equal(t, models.Ref("r-d2-b"), res.Route.ID)
	assert.Equal(t, 1, res.DestinationIndex)
	assert.Equal(t, 1, res.RouteIndex)
}

func TestResolve_UnknownRouteRefFallsThrough(t *testing.T) {
	geo := testutil.ScenarioDataset()
	a := models.Assignment{VehicleID: "3", RouteRef: "does-not-exist", DistanceKm: 8.0}

	res := Resolve(geo, 0, a)

	assert.Equal(t, models.DistanceMatch, res.Confidence)
	assert.Equal(t, models.Ref("r-d2-a"), res.Route.ID)
}

func TestResolve_TieBreakIsFirstInIterationOrder(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Name: "Alpha", Lat: 19.5, Lng: -99.0}
	d2 := models.GeoNode{ID: "B", Name: "Beta", Lat: 19.1, Lng: -99.3}
	geo := &models.GeoDataset{
		Origin:       &models.GeoNode{ID: "O", Lat: 19.43, Lng: -99.13},
		Destinations: []models.GeoNode{d1, d2},
		RoutesByDestination: [][]models.RouteGeometry{
			{testutil.Route("a", d1, 12040, "road")},
			{testutil.Route("b", d2, 12060, "road")},
		},
	}
	a := models.Assignment{VehicleID: "1", DistanceKm: 12.05}

	resolver := New(geo)
	for i := 0; i < 10; i++ {
		res := resolver.Resolve(0, a)
		require.Equal(t, models.DistanceMatch, res.Confidence)
		assert.Equal(t, models.Ref("a"), res.Route.ID)
		assert.Equal(t, 0, res.DestinationIndex)
	}
}

func TestResolve_FirstHitWinsOverClosest(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 1, Lng: 1}
	geo := &models.GeoDataset{
		Destinations: []models.GeoNode{d1},
		RoutesByDestination: [][]models.RouteGeometry{
			{testutil.Route("far", d1, 5090, "road"), testutil.Route("near", d1, 5000, "road")},
		},
	}

	res := Resolve(geo, 0, models.Assignment{DistanceKm: 5.0})

	assert.Equal(t, models.Ref("far"), res.Route.ID)
}

func TestResolve_ToleranceBoundary(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 1, Lng: 1}
	geo := &models.GeoDataset{
		Destinations:        []models.GeoNode{d1},
		RoutesByDestination: [][]models.RouteGeometry{{testutil.Route("r", d1, 8100, "road")}},
	}

	inside := Resolve(geo, 0, models.Assignment{DistanceKm: 8.0})
	assert.Equal(t, models.DistanceMatch, inside.Confidence)

	outside := Resolve(geo, 0, models.Assignment{DistanceKm: 7.99})
	assert.Equal(t, models.Unresolved, outside.Confidence)

	tight := New(geo, WithToleranceKm(0.01)).Resolve(0, models.Assignment{DistanceKm: 8.0})
	assert.Equal(t, models.Unresolved, tight.Confidence)
}

func TestResolve_ZeroDistanceSkipsDistanceTier(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 19.43, Lng: -99.13}
	geo := &models.GeoDataset{
		Destinations: []models.GeoNode{d1},
		// A degenerate route whose derived length is 0
		RoutesByDestination: [][]models.RouteGeometry{{{ID: "zero", Points: []models.LatLng{{Lat: 1, Lng: 1}}}}},
	}

	res := Resolve(geo, 0, models.Assignment{DistanceKm: 0})

	assert.Equal(t, models.Unresolved, res.Confidence)
}

func TestResolve_DistanceDerivedFromPoints(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 0, Lng: 1}
	geo := &models.GeoDataset{
		Destinations: []models.GeoNode{d1},
		RoutesByDestination: [][]models.RouteGeometry{{{
			ID:     "derived",
			Points: []models.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}},
		}}},
	}

	res := Resolve(geo, 0, models.Assignment{DistanceKm: 111.2})

	assert.Equal(t, models.DistanceMatch, res.Confidence)
	assert.Equal(t, models.Ref("derived"), res.Route.ID)
}

func TestResolve_NameMatch(t *testing.T) {
	geo := testutil.ScenarioDataset()

	t.Run("hint contained in name", func(t *testing.T) {
		res := Resolve(geo, 4, models.Assignment{DestinationName: "Tlal", DistanceKm: 30})
		assert.Equal(t, models.NameMatch, res.Confidence)
		assert.Equal(t, 1, res.DestinationIndex)
		assert.Equal(t, 4, res.Index)
	})

	t.Run("name contained in hint", func(t *testing.T) {
		res := Resolve(geo, 0, models.Assignment{DestinationName: "Albergue Ecatepec Norte"})
		assert.Equal(t, models.NameMatch, res.Confidence)
		assert.Equal(t, 0, res.DestinationIndex)
		assert.Equal(t, models.Ref("r-d1-a"), res.Route.ID)
	})

	t.Run("case sensitive", func(t *testing.T) {
		res := Resolve(geo, 0, models.Assignment{DestinationName: "tlalpan"})
		assert.Equal(t, models.Unresolved, res.Confidence)
	})

	t.Run("picks closest route of the destination", func(t *testing.T) {
		res := Resolve(geo, 0, models.Assignment{DestinationName: "Tlalpan", DistanceKm: 8.6})
		assert.Equal(t, models.NameMatch, res.Confidence)
		assert.Equal(t, models.Ref("r-d2-b"), res.Route.ID)
	})
}

func TestResolve_NameMatchIsUnicodeNormalised(t *testing.T) {
	// Precomposed n-tilde in the dataset, decomposed in the hint
	dest := models.GeoNode{ID: "X", Name: "Xochimilco A\u00f1il", Lat: 19.26, Lng: -99.1}
	geo := &models.GeoDataset{
		Destinations:        []models.GeoNode{dest},
		RoutesByDestination: [][]models.RouteGeometry{{testutil.Route("x", dest, 20000, "road")}},
	}

	res := Resolve(geo, 0, models.Assignment{DestinationName: "An\u0303il"})

	assert.Equal(t, models.NameMatch, res.Confidence)
}

func TestResolve_NameMatchWithoutRoutes(t *testing.T) {
	dest := models.GeoNode{ID: "X", Name: "Isolated", Lat: 1, Lng: 1}
	geo := &models.GeoDataset{Destinations: []models.GeoNode{dest}}

	res := Resolve(geo, 0, models.Assignment{DestinationName: "Isolated"})

	assert.Equal(t, models.NameMatch, res.Confidence)
	assert.NotNil(t, res.Destination)
	assert.Nil(t, res.Route)
	assert.Equal(t, -1, res.RouteIndex)
}

func TestResolve_Unresolved(t *testing.T) {
	geo := testutil.ScenarioDataset()

	res := Resolve(geo, 3, models.Assignment{VehicleID: "7", DistanceKm: 55})

	assert.Equal(t, models.Unresolved, res.Confidence)
	assert.False(t, res.IsResolved())
	assert.Nil(t, res.Destination)
	assert.Nil(t, res.Route)
	assert.Equal(t, -1, res.DestinationIndex)
	assert.Equal(t, 3, res.Index)
}

func TestResolve_DuplicateRouteIDsFirstWins(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 1, Lng: 1}
	d2 := models.GeoNode{ID: "B", Lat: 2, Lng: 2}
	geo := &models.GeoDataset{
		Destinations: []models.GeoNode{d1, d2},
		RoutesByDestination: [][]models.RouteGeometry{
			{testutil.Route("dup", d1, 1000, "road")},
			{testutil.Route("dup", d2, 2000, "road")},
		},
	}

	res := Resolve(geo, 0, models.Assignment{RouteRef: "dup"})

	assert.Equal(t, 0, res.DestinationIndex)
}

func TestResolve_OrphanRouteListsIgnored(t *testing.T) {
	d1 := models.GeoNode{ID: "A", Lat: 1, Lng: 1}
	geo := &models.GeoDataset{
		Destinations: []models.GeoNode{d1},
		RoutesByDestination: [][]models.RouteGeometry{
			{testutil.Route("a", d1, 1000, "road")},
			{testutil.Route("orphan", d1, 3000, "road")},
		},
	}

	byRef := Resolve(geo, 0, models.Assignment{RouteRef: "orphan"})
	assert.Equal(t, models.Unresolved, byRef.Confidence)

	byDistance := Resolve(geo, 0, models.Assignment{DistanceKm: 3.0})
	assert.Equal(t, models.Unresolved, byDistance.Confidence)
}

func TestResolve_EmptyDataset(t *testing.T) {
	res := Resolve(nil, 0, models.Assignment{RouteRef: "r", DistanceKm: 1, DestinationName: "x"})
	assert.Equal(t, models.Unresolved, res.Confidence)

	assert.Empty(t, New(&models.GeoDataset{}).ResolveAll(nil))
}

func TestResolveAll_Deterministic(t *testing.T) {
	geo := testutil.GridDataset(6, 3)
	assignments := []models.Assignment{
		{VehicleID: "1", RouteRef: "r-2-1"},
		{VehicleID: "2", DistanceKm: 42},
		{VehicleID: "3", DestinationName: "Shelter 5"},
		{VehicleID: "4", DistanceKm: 999},
	}

	first := New(geo).ResolveAll(assignments)
	second := New(geo).ResolveAll(assignments)

	assert.Equal(t, first, second)
	assert.Equal(t, []models.Confidence{models.Exact, models.DistanceMatch, models.NameMatch, models.Unresolved},
		[]models.Confidence{first[0].Confidence, first[1].Confidence, first[2].Confidence, first[3].Confidence})
	// 42 km is route 1 of destination 4
	assert.Equal(t, models.Ref("r-4-1"), first[1].Route.ID)
}
