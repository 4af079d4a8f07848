// Package drag turns pointer input into incremental position updates for
// the two draggable subjects of the editor: the background image and the
// price label.
package drag

import "sync"

// Pointer is a normalized pointer coordinate. Mouse and touch input are
// both reduced to this shape before use.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FromMouse normalizes a mouse event's client coordinates.
func FromMouse(x, y float64) Pointer {
	return Pointer{X: x, Y: y}
}

// FromTouches normalizes a touch event by its first touch point.
func FromTouches(touches []Pointer) (Pointer, bool) {
	if len(touches) == 0 {
		return Pointer{}, false
	}
	return touches[0], true
}

// EventKind identifies a surface event.
type EventKind int

const (
	EventMove EventKind = iota + 1
	EventEnd
)

// Event is a pointer event delivered by a Surface.
type Event struct {
	Kind    EventKind
	Pointer Pointer
}

// Handler receives surface events while subscribed.
type Handler interface {
	OnMove(p Pointer)
	OnEnd()
}

// Surface is the input surface pointer-move and pointer-up events arrive
// on. Events dispatched while nobody is subscribed are dropped.
type Surface struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewSurface creates an idle surface.
func NewSurface() *Surface {
	return &Surface{subs: make(map[*Subscription]struct{})}
}

// Subscription is a live registration on a Surface.
type Subscription struct {
	surface *Surface
	handler Handler
	once    sync.Once
}

// Subscribe registers h for move and end events until the returned
// subscription is stopped.
func (s *Surface) Subscribe(h Handler) *Subscription {
	sub := &Subscription{surface: s, handler: h}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// Stop removes the subscription. It is safe to call more than once.
func (sub *Subscription) Stop() {
	sub.once.Do(func() {
		sub.surface.mu.Lock()
		delete(sub.surface.subs, sub)
		sub.surface.mu.Unlock()
	})
}

// Listeners returns the number of live subscriptions.
func (s *Surface) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dispatch delivers ev to every current subscriber. It reports whether
// anyone was listening.
func (s *Surface) Dispatch(ev Event) bool {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.subs))
	for sub := range s.subs {
		handlers = append(handlers, sub.handler)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		switch ev.Kind {
		case EventMove:
			h.OnMove(ev.Pointer)
		case EventEnd:
			h.OnEnd()
		}
	}
	return len(handlers) > 0
}
