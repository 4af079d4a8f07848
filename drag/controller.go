package drag

import (
	"fmt"

	"github.com/eringen/posterkit/poster"
)

// Subject is the thing being dragged.
type Subject int

const (
	None Subject = iota
	Price
	Background
)

func (s Subject) String() string {
	switch s {
	case Price:
		return "price"
	case Background:
		return "background"
	default:
		return "none"
	}
}

// ParseSubject maps the wire names "price" and "background" to a Subject.
func ParseSubject(name string) (Subject, error) {
	switch name {
	case "price":
		return Price, nil
	case "background":
		return Background, nil
	}
	return None, fmt.Errorf("drag: unknown subject %q", name)
}

// Controller applies pointer deltas to exactly one position of a
// poster.State at a time. It listens on its Surface only while a drag is
// active.
//
// A Controller is not safe for concurrent use; the owner serializes
// calls so moves are applied in event order.
type Controller struct {
	state   *poster.State
	surface *Surface

	active       Subject
	last         Pointer
	draggingBg   bool
	draggingText bool
	sub          *Subscription
}

// NewController binds a controller to the state it mutates and the
// surface it listens on during drags.
func NewController(state *poster.State, surface *Surface) *Controller {
	return &Controller{state: state, surface: surface}
}

// Begin starts dragging subject from pointer p. A drag already in
// progress is ended first.
func (c *Controller) Begin(subject Subject, p Pointer) {
	if subject == None {
		return
	}
	if c.active != None {
		c.End()
	}
	c.active = subject
	c.last = p
	switch subject {
	case Price:
		c.draggingText = true
	case Background:
		c.draggingBg = true
	}
	c.sub = c.surface.Subscribe(c)
}

// Move adds the pointer travel since the last observed coordinate to the
// active subject's position. It does nothing when no drag is active.
func (c *Controller) Move(p Pointer) {
	if c.active == None {
		return
	}
	delta := poster.Position{X: p.X - c.last.X, Y: p.Y - c.last.Y}
	switch c.active {
	case Price:
		c.state.PricePosition = c.state.PricePosition.Add(delta)
	case Background:
		c.state.BgPosition = c.state.BgPosition.Add(delta)
	}
	c.last = p
}

// End clears the active subject and stops listening. It is idempotent.
func (c *Controller) End() {
	c.active = None
	c.draggingBg = false
	c.draggingText = false
	if c.sub != nil {
		c.sub.Stop()
		c.sub = nil
	}
}

// Active returns the subject currently being dragged.
func (c *Controller) Active() Subject {
	return c.active
}

// IsDragging reports whether subject is being dragged. The preview uses
// it to switch off easing during interaction.
func (c *Controller) IsDragging(subject Subject) bool {
	switch subject {
	case Price:
		return c.draggingText
	case Background:
		return c.draggingBg
	}
	return false
}

// OnMove implements Handler.
func (c *Controller) OnMove(p Pointer) { c.Move(p) }

// OnEnd implements Handler.
func (c *Controller) OnEnd() { c.End() }
