package lumen

// LifecycleEvent identifies a node/texture/animation lifecycle notification.
// This replaces the source framework's string-keyed event emitter (ubiquitous
// on every node, texture, and animation) with a closed enum plus a small
// slice of subscribed callbacks per kind, per the "Event emitter ubiquity"
// design note.
//
// The package emits EventInViewport, EventInBounds, EventOutOfBounds,
// EventBeforeDestroy and EventAnimationFinished. The other kinds are declared
// and can be subscribed to, but nothing in the package emits them.
type LifecycleEvent uint8

const (
	EventLoaded            LifecycleEvent = iota // texture resolved or text layout completed; not emitted by this package
	EventFailed                                  // texture load failed, with an ErrorKind; not emitted by this package
	EventFreed                                    // texture GPU handle released; not emitted by this package
	EventInViewport                               // node's render bounds entered the strict viewport rect
	EventInBounds                                 // node's render bounds entered the outer (viewport ± boundsMargin) rect
	EventOutOfBounds                              // node's render bounds left the outer rect entirely
	EventBeforeDestroy                            // node is about to be disposed
	EventIdle                                     // a frame with no dirty nodes, animations, or texture transitions; not emitted by this package
	EventFPSUpdate                                // FPS sample per Settings.FPSUpdateIntervalMS; not emitted by this package
	EventFrameTick                                // once per frame, after the main pass; not emitted by this package
	EventAnimationFinished                        // an AnimationController reached a terminal stop
)

// LifecycleData carries the payload for a LifecycleEvent. Only the fields
// relevant to the event kind are populated.
type LifecycleData struct {
	Node  *Node
	Err   error
	Kind  ErrorKind
	FPS   float64
	Anim  *AnimationController
}

// emitter is a minimal per-kind callback registry, used by Node and
// AnimationController. Zero value is ready to use.
type emitter struct {
	listeners map[LifecycleEvent][]func(LifecycleData)
}

// On subscribes fn to the given event kind.
func (e *emitter) On(kind LifecycleEvent, fn func(LifecycleData)) {
	if e.listeners == nil {
		e.listeners = make(map[LifecycleEvent][]func(LifecycleData))
	}
	e.listeners[kind] = append(e.listeners[kind], fn)
}

// Off removes all listeners for the given event kind.
func (e *emitter) Off(kind LifecycleEvent) {
	if e.listeners != nil {
		delete(e.listeners, kind)
	}
}

// emit invokes every listener subscribed to kind, in subscription order.
func (e *emitter) emit(kind LifecycleEvent, data LifecycleData) {
	for _, fn := range e.listeners[kind] {
		fn(data)
	}
}

// On subscribes a listener for a lifecycle event on this node. Nodes emit
// inViewport/inBounds/outOfBounds/beforeDestroy.
func (n *Node) On(kind LifecycleEvent, fn func(LifecycleData)) {
	n.events.On(kind, fn)
}

// Off removes all listeners for the given lifecycle event on this node.
func (n *Node) Off(kind LifecycleEvent) {
	n.events.Off(kind)
}
