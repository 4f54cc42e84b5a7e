package resolve

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"relief-route-viewer/internal/models"
)

// DefaultToleranceKm is how far an assignment distance may be from a route
// distance for the two to be considered the same route
const DefaultToleranceKm = 0.1

// floating point slack so that a 0.1 km difference still counts as inside
const toleranceEpsilon = 1e-9

// routeLoc locates a route inside the dataset
type routeLoc struct {
	dest  int
	route int
}

// Resolver maps optimizer assignments onto routes of one dataset.
// It is immutable once built and safe to share.
type Resolver struct {
	geo         *models.GeoDataset
	toleranceKm float64
	byID        map[models.Ref]routeLoc
	names       []string // NFC-normalised destination names
}

// Option configures a Resolver
type Option func(*Resolver)

// WithToleranceKm overrides the distance tolerance used by the distance tier
func WithToleranceKm(km float64) Option {
	return func(r *Resolver) {
		if km >= 0 {
			r.toleranceKm = km
		}
	}
}

// New indexes the dataset for resolution
func New(geo *models.GeoDataset, opts ...Option) *Resolver {
	if geo == nil {
		geo = &models.GeoDataset{}
	}
	r := &Resolver{
		geo:         geo,
		toleranceKm: DefaultToleranceKm,
		byID:        make(map[models.Ref]routeLoc),
		names:       make([]string, len(geo.Destinations)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for d := range geo.Destinations {
		r.names[d] = norm.NFC.String(geo.Destinations[d].Name)
		for k, route := range geo.RoutesFor(d) {
			if route.ID.IsZero() {
				continue
			}
			// First occurrence wins when ids repeat
			if _, ok := r.byID[route.ID]; !ok {
				r.byID[route.ID] = routeLoc{dest: d, route: k}
			}
		}
	}
	return r
}

// Resolve matches a single assignment against the dataset
func Resolve(geo *models.GeoDataset, index int, a models.Assignment) models.ResolvedAssignment {
	return New(geo).Resolve(index, a)
}

// ResolveAll resolves every assignment, keeping input order
func (r *Resolver) ResolveAll(assignments []models.Assignment) []models.ResolvedAssignment {
	out := make([]models.ResolvedAssignment, len(assignments))
	for i, a := range assignments {
		out[i] = r.Resolve(i, a)
	}
	return out
}

// Resolve matches an assignment using, in order: the explicit route id, the
// route distance, then the destination name hint. The first tier that finds
// a candidate wins. An assignment nothing matches comes back Unresolved.
func (r *Resolver) Resolve(index int, a models.Assignment) models.ResolvedAssignment {
	if loc, ok := r.byExactID(a); ok {
		return r.resolved(index, a, loc, models.Exact)
	}
	if loc, ok := r.byDistance(a); ok {
		return r.resolved(index, a, loc, models.DistanceMatch)
	}
	if loc, ok := r.byName(a); ok {
		return r.resolved(index, a, loc, models.NameMatch)
	}
	return models.ResolvedAssignment{
		Index:            index,
		Assignment:       a,
		DestinationIndex: -1,
		RouteIndex:       -1,
		Confidence:       models.Unresolved,
	}
}

func (r *Resolver) byExactID(a models.Assignment) (routeLoc, bool) {
	if a.RouteRef.IsZero() {
		return routeLoc{}, false
	}
	loc, ok := r.byID[a.RouteRef]
	return loc, ok
}

// byDistance returns the first route in destination-then-route order within
// tolerance. The first hit wins, not the closest one.
func (r *Resolver) byDistance(a models.Assignment) (routeLoc, bool) {
	if a.DistanceKm <= 0 {
		return routeLoc{}, false
	}
	for d := range r.geo.Destinations {
		routes := r.geo.RoutesFor(d)
		for k := range routes {
			if math.Abs(routes[k].DistanceKm()-a.DistanceKm) <= r.toleranceKm+toleranceEpsilon {
				return routeLoc{dest: d, route: k}, true
			}
		}
	}
	return routeLoc{}, false
}

func (r *Resolver) byName(a models.Assignment) (routeLoc, bool) {
	hint := norm.NFC.String(a.DestinationName)
	if hint == "" {
		return routeLoc{}, false
	}
	for d, name := range r.names {
		if name == "" {
			continue
		}
		if strings.Contains(name, hint) || strings.Contains(hint, name) {
			return routeLoc{dest: d, route: closestRoute(r.geo.RoutesFor(d), a.DistanceKm)}, true
		}
	}
	return routeLoc{}, false
}

// closestRoute picks the route nearest in distance, first on ties. Returns
// -1 for a destination without routes.
func closestRoute(routes []models.RouteGeometry, distanceKm float64) int {
	if len(routes) == 0 {
		return -1
	}
	if distanceKm <= 0 {
		return 0
	}
	best, bestDiff := 0, math.Inf(1)
	for k := range routes {
		if diff := math.Abs(routes[k].DistanceKm() - distanceKm); diff < bestDiff {
			best, bestDiff = k, diff
		}
	}
	return best
}

func (r *Resolver) resolved(index int, a models.Assignment, loc routeLoc, c models.Confidence) models.ResolvedAssignment {
	out := models.ResolvedAssignment{
		Index:            index,
		Assignment:       a,
		Destination:      &r.geo.Destinations[loc.dest],
		DestinationIndex: loc.dest,
		RouteIndex:       loc.route,
		Confidence:       c,
	}
	if loc.route >= 0 {
		out.Route = &r.geo.RoutesByDestination[loc.dest][loc.route]
	}
	return out
}
