package highlight

import (
	"errors"
	"fmt"

	"relief-route-viewer/internal/models"
)

// ErrIndexOutOfRange is returned when highlighting an assignment the active
// solution does not have
var ErrIndexOutOfRange = errors.New("highlight index out of range")

type subscriber struct {
	id int
	fn func(models.HighlightState)
}

// Coordinator holds the one highlighted assignment shared by the map and the
// list. Setting a new index replaces the previous one; there is never more
// than one highlighted assignment. Not safe for concurrent use.
type Coordinator struct {
	state       models.HighlightState
	bound       int
	subscribers []subscriber
	nextID      int
}

// NewCoordinator creates a coordinator for a solution with n assignments
func NewCoordinator(n int) *Coordinator {
	return &Coordinator{
		state: models.NoHighlight(),
		bound: n,
	}
}

// State returns the current highlight
func (c *Coordinator) State() models.HighlightState {
	return c.state
}

// Bound returns the number of assignments highlights are validated against
func (c *Coordinator) Bound() int {
	return c.bound
}

// SetHighlight emphasizes assignment i
func (c *Coordinator) SetHighlight(i int) error {
	if i < 0 || i >= c.bound {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, c.bound)
	}
	if c.state.Is(i) {
		return nil
	}
	c.set(models.Highlighted(i))
	return nil
}

// Clear removes any highlight
func (c *Coordinator) Clear() {
	if !c.state.Active {
		return
	}
	c.set(models.NoHighlight())
}

// Reset clears the highlight and validates future indexes against n
// assignments. Used when the active solution changes.
func (c *Coordinator) Reset(n int) {
	c.bound = n
	c.Clear()
}

// Subscribe registers fn to be called after every highlight change. The
// returned function removes the subscription.
func (c *Coordinator) Subscribe(fn func(models.HighlightState)) func() {
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

func (c *Coordinator) set(state models.HighlightState) {
	c.state = state
	for _, s := range c.subscribers {
		s.fn(state)
	}
}
