package lumen

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 float64 fields on a Node simultaneously.
// Create one via the convenience constructors (TweenPosition, TweenScale,
// TweenColor) and call Update(dt) each frame. The group auto-applies values
// and marks the node dirty. If the target node is disposed, the group stops
// immediately.
//
// There is no global animation manager — users call Update themselves.
type TweenGroup struct {
	tweens [4]*gween.Tween
	count  int
	fields [4]*float64
	target *Node
	Done   bool

	// Construction parameters, retained so AnimationController can rebuild
	// tweens for repeat/reverse playback without depending on gween.Tween
	// exposing getters for them.
	froms, tos, durations [4]float32
	fns                   [4]ease.TweenFunc
}

// Update advances all tweens by dt seconds, writes values to the target fields,
// and marks the node dirty. If the target node has been disposed, Done is set
// to true and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}

	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone

	if g.target != nil {
		g.target.MarkDirty()
	}
}

// set installs tween slot i, recording its construction parameters so
// AnimationController can rebuild it later for repeat/reverse playback.
func (g *TweenGroup) set(i int, field *float64, from, to, duration float32, fn ease.TweenFunc) {
	g.tweens[i] = gween.New(from, to, duration, fn)
	g.fields[i] = field
	g.froms[i], g.tos[i], g.durations[i], g.fns[i] = from, to, duration, fn
}

// TweenPosition creates a TweenGroup that animates node.X and node.Y to the
// given target coordinates over the specified duration using the easing function.
func TweenPosition(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2, target: node}
	g.set(0, &node.X, float32(node.X), float32(toX), duration, fn)
	g.set(1, &node.Y, float32(node.Y), float32(toY), duration, fn)
	return g
}

// TweenScale creates a TweenGroup that animates node.ScaleX and node.ScaleY to
// the given target values over the specified duration using the easing function.
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 2, target: node}
	g.set(0, &node.ScaleX, float32(node.ScaleX), float32(toSX), duration, fn)
	g.set(1, &node.ScaleY, float32(node.ScaleY), float32(toSY), duration, fn)
	return g
}

// TweenColor creates a TweenGroup that animates all four components of
// node.Color (R, G, B, A) to the target color over the specified duration.
func TweenColor(node *Node, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 4, target: node}
	g.set(0, &node.Color.R, float32(node.Color.R), float32(to.R), duration, fn)
	g.set(1, &node.Color.G, float32(node.Color.G), float32(to.G), duration, fn)
	g.set(2, &node.Color.B, float32(node.Color.B), float32(to.B), duration, fn)
	g.set(3, &node.Color.A, float32(node.Color.A), float32(to.A), duration, fn)
	return g
}

// TweenAlpha creates a TweenGroup that animates node.Alpha to the target value
// over the specified duration using the easing function.
func TweenAlpha(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: node}
	g.set(0, &node.Alpha, float32(node.Alpha), float32(to), duration, fn)
	return g
}

// TweenRotation creates a TweenGroup that animates node.Rotation to the target
// value over the specified duration using the easing function.
func TweenRotation(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{count: 1, target: node}
	g.set(0, &node.Rotation, float32(node.Rotation), float32(to), duration, fn)
	return g
}

// StopMethod controls what happens to a Node's animated fields when an
// AnimationController's repeat count is exhausted or it is stopped early.
type StopMethod uint8

const (
	StopMethodHold    StopMethod = iota // leave fields at their last animated value
	StopMethodReset                     // snap fields back to their start-of-run values
	StopMethodReverse                   // play once more in reverse, then hold
)

// AnimationController wraps a TweenGroup with delay, repeat/loop, and
// stop-on-finish behavior, and fires EventAnimationFinished on the animated
// node when the run completes. Built on the same gween tweens TweenGroup
// uses; repetition and delay are sequencing concerns layered on top.
type AnimationController struct {
	group   *TweenGroup
	start   [4]float32 // field values at the start of the current run, for StopMethodReset/Reverse
	target  *Node
	Delay   float32 // seconds to wait before the first tween starts
	Repeat  int     // number of additional plays after the first; -1 = loop forever
	Stop    StopMethod
	Paused  bool

	elapsedDelay float32
	playsLeft    int
	reversed     bool
	finished     bool
}

// NewAnimationController wraps an existing TweenGroup for repeat/delay/stop
// control. The group's tweens are read to capture their start values for
// StopMethodReset/StopMethodReverse.
func NewAnimationController(group *TweenGroup) *AnimationController {
	c := &AnimationController{group: group, target: group.target, Repeat: 0, Stop: StopMethodHold}
	for i := 0; i < group.count; i++ {
		c.start[i] = float32(*group.fields[i])
	}
	return c
}

// IsFinished reports whether the controller has exhausted its delay, its
// plays (including repeats), and any reverse-on-stop pass.
func (c *AnimationController) IsFinished() bool {
	return c.finished
}

// Pause halts tween advancement until Resume is called.
func (c *AnimationController) Pause() { c.Paused = true }

// Resume resumes tween advancement after Pause.
func (c *AnimationController) Resume() { c.Paused = false }

// Update advances delay, then the underlying TweenGroup, handling repeats,
// loop, and the configured StopMethod. Fires EventAnimationFinished on the
// target node exactly once, when the whole run (including any reverse pass)
// completes.
func (c *AnimationController) Update(dt float32) {
	if c.finished || c.Paused {
		return
	}
	if c.target != nil && c.target.IsDisposed() {
		c.finished = true
		return
	}

	if c.elapsedDelay < c.Delay {
		c.elapsedDelay += dt
		if c.elapsedDelay < c.Delay {
			return
		}
		dt = c.elapsedDelay - c.Delay
	}

	c.group.Update(dt)
	if !c.group.Done {
		return
	}

	if !c.reversed && (c.Repeat < 0 || c.playsLeft < c.Repeat) {
		c.playsLeft++
		c.restartGroup(false)
		return
	}

	switch c.Stop {
	case StopMethodReset:
		for i := 0; i < c.group.count; i++ {
			*c.group.fields[i] = float64(c.start[i])
		}
		if c.target != nil {
			c.target.MarkDirty()
		}
	case StopMethodReverse:
		if !c.reversed {
			c.reversed = true
			c.restartGroup(true)
			return
		}
	}

	c.finished = true
	if c.target != nil {
		c.target.events.emit(EventAnimationFinished, LifecycleData{Node: c.target, Anim: c})
	}
}

// restartGroup rebuilds the underlying tweens in-place for another play.
// reverse swaps each tween's from/to so it plays backward.
func (c *AnimationController) restartGroup(reverse bool) {
	g := c.group
	for i := 0; i < g.count; i++ {
		from, to := g.froms[i], g.tos[i]
		if reverse {
			from, to = to, from
		}
		g.tweens[i] = gween.New(from, to, g.durations[i], g.fns[i])
	}
	g.Done = false
}
