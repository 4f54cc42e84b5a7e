package viewer

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/highlight"
	"relief-route-viewer/internal/metrics"
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/overlay"
	"relief-route-viewer/internal/resolve"
)

// ErrSolutionOutOfRange is returned when selecting a solution the set does not have
var ErrSolutionOutOfRange = errors.New("solution index out of range")

// EventKind tells subscribers what changed
type EventKind string

const (
	EventSolution  EventKind = "solution"
	EventHighlight EventKind = "highlight"
)

// Event is delivered to subscribers after the active solution or the
// highlight changed
type Event struct {
	Kind      EventKind             `json:"kind"`
	Solution  int                   `json:"solution"`
	Highlight models.HighlightState `json:"highlight"`
}

// entry is the memoized work for one solution index
type entry struct {
	resolved []models.ResolvedAssignment
	overlay  *models.OverlayModel
}

// Controller selects the active solution of a run and keeps its resolved
// assignments, overlay model and highlight consistent. A Controller is not
// safe for concurrent use.
type Controller struct {
	geo         *models.GeoDataset
	solutions   []models.Solution
	resolver    *resolve.Resolver
	builder     *overlay.Builder
	coordinator *highlight.Coordinator
	log         *logrus.Entry

	active    int
	cache     []*entry
	empty     *entry
	switching bool

	subscribers []subscriber
	nextID      int
}

type subscriber struct {
	id int
	fn func(Event)
}

type settings struct {
	toleranceKm float64
	style       overlay.Style
	log         *logrus.Entry
}

// Option configures a Controller
type Option func(*settings)

// WithToleranceKm sets the distance tolerance used by the resolver
func WithToleranceKm(km float64) Option {
	return func(s *settings) { s.toleranceKm = km }
}

// WithStyle sets the overlay style
func WithStyle(style overlay.Style) Option {
	return func(s *settings) { s.style = style }
}

// WithLogger sets the logger diagnostics are written to
func WithLogger(log *logrus.Entry) Option {
	return func(s *settings) { s.log = log }
}

// New creates a controller for a run. Solution 0 is active; nothing is
// computed until it is first read.
func New(geo *models.GeoDataset, set *models.SolutionSet, opts ...Option) *Controller {
	s := settings{
		toleranceKm: resolve.DefaultToleranceKm,
		style:       overlay.DefaultStyle(),
		log:         logrus.WithField("component", "viewer"),
	}
	for _, opt := range opts {
		opt(&s)
	}

	solutions := set.Visible()
	c := &Controller{
		geo:       geo,
		solutions: solutions,
		resolver:  resolve.New(geo, resolve.WithToleranceKm(s.toleranceKm)),
		builder:   overlay.NewBuilder(s.style),
		log:       s.log,
		cache:     make([]*entry, len(solutions)),
	}

	bound := 0
	if len(solutions) > 0 {
		bound = len(solutions[0].Assignments)
	}
	c.coordinator = highlight.NewCoordinator(bound)
	c.coordinator.Subscribe(c.onHighlight)
	return c
}

// HasData reports whether there is anything to show. Without a dataset or
// without solutions the overlay and the list are empty.
func (c *Controller) HasData() bool {
	return !c.geo.IsEmpty() && len(c.solutions) > 0
}

// SolutionCount returns the number of selectable solutions
func (c *Controller) SolutionCount() int {
	return len(c.solutions)
}

// ActiveIndex returns the index of the active solution
func (c *Controller) ActiveIndex() int {
	return c.active
}

// ActiveSolution returns the active solution, or nil when there is none
func (c *Controller) ActiveSolution() *models.Solution {
	if len(c.solutions) == 0 {
		return nil
	}
	return &c.solutions[c.active]
}

// Solutions returns the selectable solutions
func (c *Controller) Solutions() []models.Solution {
	return c.solutions
}

// Style returns the overlay style in use
func (c *Controller) Style() overlay.Style {
	return c.builder.Style()
}

// SelectSolution makes solution i active and clears the highlight.
// Selecting the active solution again changes nothing.
func (c *Controller) SelectSolution(i int) error {
	if i < 0 || i >= len(c.solutions) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSolutionOutOfRange, i, len(c.solutions))
	}
	if i == c.active {
		return nil
	}

	c.active = i
	c.current()

	c.switching = true
	c.coordinator.Reset(len(c.solutions[i].Assignments))
	c.switching = false

	c.log.WithField("solution", i).Debug("Active solution changed")
	c.emit(Event{Kind: EventSolution, Solution: i, Highlight: c.coordinator.State()})
	return nil
}

// Resolved returns the resolved assignments of the active solution
func (c *Controller) Resolved() []models.ResolvedAssignment {
	return c.current().resolved
}

// Overlay returns the undecorated overlay model of the active solution
func (c *Controller) Overlay() *models.OverlayModel {
	return c.current().overlay
}

// View returns the active overlay decorated for the current highlight
func (c *Controller) View() highlight.View {
	e := c.current()
	return highlight.Decorate(e.overlay, e.resolved, c.coordinator.State(), c.builder.Style())
}

// Highlight returns the current highlight state
func (c *Controller) Highlight() models.HighlightState {
	return c.coordinator.State()
}

// SetHighlight emphasizes assignment i of the active solution
func (c *Controller) SetHighlight(i int) error {
	return c.coordinator.SetHighlight(i)
}

// ClearHighlight removes the highlight
func (c *Controller) ClearHighlight() {
	c.coordinator.Clear()
}

// Subscribe registers fn for solution and highlight changes. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(Event)) func() {
	id := c.nextID
	c.nextID++
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) onHighlight(state models.HighlightState) {
	metrics.HighlightChanges.Inc()
	if c.switching {
		return
	}
	c.emit(Event{Kind: EventHighlight, Solution: c.active, Highlight: state})
}

func (c *Controller) emit(ev Event) {
	for _, s := range c.subscribers {
		s.fn(ev)
	}
}

// current returns the cache entry of the active solution, computing it on
// first use. Without solutions there is nothing to draw, even when the
// dataset has destinations.
func (c *Controller) current() *entry {
	if len(c.solutions) == 0 {
		if c.empty == nil {
			c.empty = &entry{overlay: &models.OverlayModel{
				Destinations: []*models.Marker{},
				Polylines:    []*models.Polyline{},
				Empty:        true,
			}}
		}
		return c.empty
	}
	if e := c.cache[c.active]; e != nil {
		metrics.SolutionCache.WithLabelValues("hit").Inc()
		return e
	}
	metrics.SolutionCache.WithLabelValues("miss").Inc()

	e := c.compute(c.active)
	c.cache[c.active] = e
	return e
}

func (c *Controller) compute(i int) *entry {
	resolved := c.resolver.ResolveAll(c.solutions[i].Assignments)
	model := c.builder.Build(resolved, c.geo)

	for _, r := range resolved {
		metrics.Resolutions.WithLabelValues(r.Confidence.String()).Inc()
		if r.Confidence == models.Unresolved {
			c.log.WithFields(logrus.Fields{
				"solution":    i,
				"assignment":  r.Index,
				"vehicle":     r.Assignment.VehicleID,
				"route_ref":   r.Assignment.RouteRef,
				"distance_km": r.Assignment.DistanceKm,
			}).Warn("Assignment matches no route")
		}
	}
	for _, idx := range model.Malformed {
		metrics.MalformedGeometries.Inc()
		c.log.WithFields(logrus.Fields{
			"solution":   i,
			"assignment": idx,
			"route":      resolved[idx].Route.ID,
		}).Warn("Route geometry has fewer than 2 points, polyline skipped")
	}

	return &entry{resolved: resolved, overlay: model}
}
