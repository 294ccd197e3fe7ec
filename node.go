package lumen

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Font and TextBlock are defined in text.go. Filter is defined in filter.go.

// DirtyFlag is a bit in a node's dirty bitset, marking a derived quantity
// that must be recomputed during the next scene-graph cascade.
type DirtyFlag uint16

const (
	DirtyLocal       DirtyFlag = 1 << iota // local transform inputs (x/y/scale/rotation/pivot/mount/size) changed
	DirtyTransform                         // local or parent world transform needs recomposition
	DirtyWorldAlpha                        // local alpha or parent world alpha changed
	DirtyWorldColor                        // local corner colors or world alpha changed
	DirtyClipping                          // clipping flag or transform changed, world clip needs recompute
	DirtyRenderBounds                      // render bounds AABB needs reclassification against viewport
	DirtyChildren                          // child list order changed, siblings need re-sort
	DirtyZIndex                            // this node's zIndex or zIndexLocked changed
	DirtyRttUpload                         // this node's rtt subtree needs re-render
)

const dirtyAll = DirtyLocal | DirtyTransform | DirtyWorldAlpha | DirtyWorldColor |
	DirtyClipping | DirtyRenderBounds | DirtyChildren | DirtyZIndex | DirtyRttUpload

// AutosizeMode records how a node without an explicit size tracks its
// content. The mode is chosen by the first call to SetAutosize(true):
// ToTexture if a texture is already set at that moment, else ToChildren.
// SetAutosize(false) resets it to AutosizeNone, and it is not chosen again.
// The mode is only recorded: nothing in the package changes Width or Height
// from it.
type AutosizeMode uint8

const (
	AutosizeNone       AutosizeMode = iota // no autosize; Width/Height come from SetSize
	AutosizeToTexture                      // chosen when a texture was set; Width/Height are not updated from it
	AutosizeToChildren                     // chosen when no texture was set; Width/Height are not updated from the children
)

// RenderBoundsState classifies a node's world-space render bounds against
// the viewport and its boundsMargin-expanded outer rectangle.
type RenderBoundsState uint8

const (
	BoundsInViewport  RenderBoundsState = iota // intersects the strict viewport rect
	BoundsInBounds                             // inside the outer (viewport ± boundsMargin) rect but outside the viewport
	BoundsOutOfBounds                          // outside the outer rect entirely
)

// --- ID counter ---

// nodeIDCounter is a plain counter (no atomic — the scene runs single-threaded).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// --- Node ---

// Node is the fundamental scene graph element. A single flat struct is used for
// all node types to avoid interface dispatch on the hot path.
type Node struct {
	// Identity

	// ID is a unique auto-assigned identifier (never zero for live nodes).
	ID uint32
	// Name is a human-readable label for debugging; not used for lookups.
	Name string
	// Type determines how this node is rendered (container, sprite, or text).
	Type NodeType

	// Hierarchy

	// Parent points to this node's parent, or nil for the root.
	Parent   *Node
	children []*Node

	// Transform (local, relative to Parent)

	// X and Y are the local-space position in pixels (origin at top-left, Y down).
	X, Y float64
	// ScaleX and ScaleY are the local scale factors (1.0 = no scaling).
	ScaleX float64
	ScaleY float64
	// Rotation is the local rotation in radians (clockwise).
	Rotation float64
	// SkewX and SkewY are shear angles in radians.
	SkewX, SkewY float64
	// PivotX and PivotY are the transform origin, normalized to [0,1] of
	// (Width, Height). Scale, skew, and rotation are applied around this point.
	PivotX float64
	PivotY float64
	// MountX and MountY are the anchor, normalized to [0,1] of (Width, Height),
	// that X/Y position within the node. {0,0} (default) anchors the top-left
	// corner at (X, Y); {0.5,0.5} anchors the center.
	MountX float64
	MountY float64
	// Width and Height are the node's local-space box size in pixels, used
	// for the transform's mount/pivot anchoring, clipping, and render-bounds
	// culling. See SetAutosize for the autosize mode.
	Width, Height float64

	// autosizeMode is chosen on the first SetAutosize(true) call and does not
	// follow later texture changes. SetAutosize(false) resets it to
	// AutosizeNone; autosizeSet stays true, so it is not chosen again.
	autosizeMode AutosizeMode
	autosizeSet  bool

	// Computed (unexported, updated during traversal)
	worldTransform [6]float64
	worldAlpha     float64
	transformDirty bool
	alphaDirty     bool

	// dirty is the bitset of derived quantities pending recomputation.
	dirty DirtyFlag

	// World-space derived state from the scene-graph cascade.
	worldColorTl, worldColorTr, worldColorBl, worldColorBr Color
	worldClip      Rect
	worldClipValid bool
	renderBounds   Rect
	boundsState    RenderBoundsState

	// ancestorTint is the accumulated tint of this node's ancestors, not
	// including the node's own Color. Used to tint the composited output of
	// cached/masked/filtered subtrees without double-applying the node's own
	// tint (already baked into the offscreen render).
	ancestorTint Color

	// zIndexLocked ancestor bookkeeping: when non-nil, this node's render
	// command sorts at lockedZNode's GlobalOrder rather than its own (see
	// effectiveGlobalOrder).
	lockedZNode *Node

	// Visibility & interaction

	// Alpha is the node's opacity in [0, 1]. Multiplied with the parent's
	// computed alpha, so children inherit transparency.
	Alpha float64
	// Visible controls whether this node and its subtree are drawn.
	// Scene.Update also skips OnUpdate callbacks in an invisible subtree.
	Visible bool
	// Renderable controls whether this node emits render commands. When false
	// the node is skipped during drawing but its children are still traversed.
	Renderable bool

	// Ordering

	// ZIndex controls draw order among siblings. Higher values draw on top.
	// Use SetZIndex to change this so the parent is notified to re-sort.
	ZIndex int
	// ZIndexLocked, when true, forces every descendant to sort within this
	// node's z slot: descendants' own ZIndex only orders them among their
	// siblings, not against nodes outside this subtree.
	ZIndexLocked bool
	// Clipping, when true, clips all descendants to this node's axis-aligned
	// world-space rectangle. Clip rects compose by intersection down the tree.
	Clipping bool
	// RTT, when true, this node and its descendants render into a private
	// offscreen framebuffer in a prior sub-pass, and that framebuffer's
	// texture becomes this node's source in the main pass. Implemented atop
	// the subtree render-cache machinery (SetCacheAsTexture) since both
	// describe "render a subtree to a texture and sample it as a quad".
	RTT bool
	// RenderLayer is the primary sort key for render commands.
	// All commands in a lower layer draw before any command in a higher layer.
	RenderLayer uint8
	// GlobalOrder is a secondary sort key within the same RenderLayer.
	// Set it to override the default tree-order sorting.
	GlobalOrder int

	// Metadata

	// UserData is an arbitrary value the application can attach to a node.
	UserData any

	// Sprite fields (NodeTypeSprite)

	// TextureRegion identifies the sub-image within an atlas page to draw.
	TextureRegion TextureRegion
	// BlendMode selects the compositing operation used when drawing this node.
	BlendMode BlendMode
	// Color is a multiplicative tint applied to the sprite. The default
	// {1,1,1,1} means no tint. SetColor assigns all four corners at once;
	// set ColorTl/ColorTr/ColorBl/ColorBr individually for a gradient fill.
	Color Color
	// ColorTl, ColorTr, ColorBl, ColorBr are the four corner tints. They
	// start equal to Color; diverging them produces a gradient quad.
	ColorTl, ColorTr, ColorBl, ColorBr Color
	customImage *ebiten.Image // user-provided offscreen canvas, set via SetCustomImage

	// Text fields (NodeTypeText)

	// TextBlock holds the text content, font, and cached layout state.
	TextBlock *TextBlock

	// Update field (optional callback)

	// OnUpdate is called once per tick during Scene.Update if set.
	OnUpdate func(dt float64)

	// Filters

	// Filters is the chain of visual effects applied to this node's rendered
	// output. Filters are applied in order; each reads from the previous
	// result and writes to a new buffer.
	Filters []Filter

	// Cache fields
	cacheEnabled bool
	cacheTexture *ebiten.Image
	cacheDirty   bool

	// mask is a node whose alpha channel determines which parts of this
	// node's rendered output are visible. Not part of the scene tree: its
	// own transform is relative to the masked node, not to the mask's
	// nominal parent. See SetMask.
	mask *Node

	// events holds lifecycle listeners registered via On/Off.
	events emitter

	// Static command cache (nil when unused — 8 bytes overhead per node)
	staticCache *staticCacheData

	// Internal
	disposed       bool
	childrenSorted bool
	sortedChildren []*Node // reused buffer for ZIndex-sorted traversal order
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Alpha = 1
	white := Color{1, 1, 1, 1}
	n.Color = white
	n.ColorTl, n.ColorTr, n.ColorBl, n.ColorBr = white, white, white, white
	n.Visible = true
	n.Renderable = true
	n.transformDirty = true
	n.alphaDirty = true
	n.childrenSorted = true
	n.dirty = dirtyAll
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewSprite creates a sprite node that renders a texture region.
func NewSprite(name string, region TextureRegion) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite, TextureRegion: region}
	nodeDefaults(n)
	// If no region is specified (zero value), default to WhitePixel
	if region == (TextureRegion{}) {
		n.customImage = WhitePixel
	}
	return n
}

// NewText creates a text node that renders the given string using font.
// The node's TextBlock is initialized with white color and dirty layout.
func NewText(name string, content string, font Font) *Node {
	n := &Node{
		Name: name,
		Type: NodeTypeText,
		TextBlock: &TextBlock{
			Content:     content,
			Font:        font,
			Color:       Color{1, 1, 1, 1},
			layoutDirty: true,
			ttfPage:     -1,
		},
	}
	nodeDefaults(n)
	return n
}

// SetCustomImage sets a user-provided *ebiten.Image to display instead of TextureRegion,
// e.g. a render-to-texture result or a procedurally generated canvas.
func (n *Node) SetCustomImage(img *ebiten.Image) {
	n.customImage = img
	invalidateAncestorCache(n)
}

// CustomImage returns the user-provided image, or nil if not set.
func (n *Node) CustomImage() *ebiten.Image {
	return n.customImage
}

// --- Visual property setters ---
// These setters update the field and invalidate ancestor static caches.
// The underlying fields remain public for reads.

// SetColor sets the node's tint color, applying it uniformly to all four
// corners (clearing any gradient set by SetCornerColors), and invalidates
// ancestor static caches.
func (n *Node) SetColor(c Color) {
	n.Color = c
	n.ColorTl, n.ColorTr, n.ColorBl, n.ColorBr = c, c, c, c
	n.dirty |= DirtyWorldColor
	invalidateAncestorCache(n)
}

// SetCornerColors sets the four corner tints independently, producing a
// gradient fill across the node's quad.
func (n *Node) SetCornerColors(tl, tr, bl, br Color) {
	n.ColorTl, n.ColorTr, n.ColorBl, n.ColorBr = tl, tr, bl, br
	n.Color = tl
	n.dirty |= DirtyWorldColor
	invalidateAncestorCache(n)
}

// SetSize sets the node's local Width and Height in pixels, used for
// mount/pivot anchoring, clipping, and render-bounds culling. The values
// stay as set whatever the autosize mode; the cascade does not override them.
func (n *Node) SetSize(w, h float64) {
	n.Width = w
	n.Height = h
	n.dirty |= DirtyLocal | DirtyTransform | DirtyClipping | DirtyRenderBounds
	invalidateAncestorCache(n)
}

// SetAutosize enables or disables automatic sizing. The mode is chosen once,
// on the first call with enabled=true: AutosizeToTexture if the node
// currently has a texture or custom image, else AutosizeToChildren. Calling
// with enabled=false sets the mode to AutosizeNone and does not reset
// Width/Height; a later call with enabled=true does not choose a mode again.
// The mode is only recorded: Width and Height are not updated from the
// texture or the children.
func (n *Node) SetAutosize(enabled bool) {
	if !enabled {
		n.autosizeMode = AutosizeNone
		return
	}
	if n.autosizeSet {
		return
	}
	n.autosizeSet = true
	if n.customImage != nil || n.TextureRegion != (TextureRegion{}) {
		n.autosizeMode = AutosizeToTexture
	} else {
		n.autosizeMode = AutosizeToChildren
	}
	n.dirty |= DirtyLocal | DirtyTransform | DirtyRenderBounds
	invalidateAncestorCache(n)
}

// AutosizeMode returns the node's fixed autosize mode.
func (n *Node) AutosizeMode() AutosizeMode {
	return n.autosizeMode
}

// SetMount sets the node's MountX/MountY anchor (fraction of Width/Height
// that X/Y positions) and marks the transform dirty.
func (n *Node) SetMount(mx, my float64) {
	n.MountX = mx
	n.MountY = my
	n.dirty |= DirtyLocal | DirtyTransform
	invalidateAncestorCache(n)
}

// SetClipping enables or disables clipping descendants to this node's
// world-space rectangle.
func (n *Node) SetClipping(enabled bool) {
	n.Clipping = enabled
	n.dirty |= DirtyClipping
	invalidateAncestorCache(n)
}

// SetZIndexLocked sets whether descendants are forced to sort within this
// node's z slot (see ZIndexLocked).
func (n *Node) SetZIndexLocked(locked bool) {
	n.ZIndexLocked = locked
	n.dirty |= DirtyZIndex
	invalidateAncestorCache(n)
}

// SetRTT enables or disables render-to-texture for this node's subtree.
// Implemented on top of the subtree render cache (SetCacheAsTexture): both
// mean "render this subtree to an offscreen texture and sample it as a
// quad in the main pass", so RTT reuses that machinery rather than
// duplicating it.
func (n *Node) SetRTT(enabled bool) {
	n.RTT = enabled
	n.SetCacheAsTexture(enabled)
	n.dirty |= DirtyRttUpload
}

// SetBlendMode sets the node's blend mode and invalidates ancestor static caches.
func (n *Node) SetBlendMode(b BlendMode) {
	n.BlendMode = b
	invalidateAncestorCache(n)
}

// SetVisible sets the node's visibility and invalidates ancestor static caches.
func (n *Node) SetVisible(v bool) {
	n.Visible = v
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
}

// SetRenderable sets whether the node emits render commands and invalidates ancestor static caches.
func (n *Node) SetRenderable(r bool) {
	n.Renderable = r
	invalidateAncestorCache(n)
}

// SetTextureRegion sets the node's texture region and invalidates ancestor static caches.
func (n *Node) SetTextureRegion(r TextureRegion) {
	n.TextureRegion = r
	invalidateAncestorCache(n)
}

// SetRenderLayer sets the node's render layer and invalidates ancestor static caches.
func (n *Node) SetRenderLayer(l uint8) {
	n.RenderLayer = l
	invalidateAncestorCache(n)
}

// SetGlobalOrder sets the node's global order and invalidates ancestor static caches.
func (n *Node) SetGlobalOrder(o int) {
	n.GlobalOrder = o
	invalidateAncestorCache(n)
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("lumen: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("lumen: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	n.childrenSorted = false
	markSubtreeDirty(child)
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("lumen: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChildAt (parent)")
		debugCheckDisposed(child, "AddChildAt (child)")
	}
	if isAncestor(child, n) {
		panic("lumen: adding child would create a cycle")
	}
	if index < 0 || index > len(n.children) {
		panic("lumen: child index out of range")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	n.childrenSorted = false
	markSubtreeDirty(child)
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChild (parent)")
		debugCheckDisposed(child, "RemoveChild (child)")
	}
	if child.Parent != n {
		panic("lumen: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
}

// RemoveChildAt removes and returns the child at the given index.
// Panics if the index is out of range.
func (n *Node) RemoveChildAt(index int) *Node {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChildAt")
	}
	if index < 0 || index >= len(n.children) {
		panic("lumen: child index out of range")
	}
	child := n.children[index]
	copy(n.children[index:], n.children[index+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
	return child
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	n.children = n.children[:0]
	n.childrenSorted = true
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
	invalidateAncestorCache(n)
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
// Panics if the index is out of range.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// SetChildIndex moves child to a new index among its siblings.
// Panics if child is not a child of n or if index is out of range.
func (n *Node) SetChildIndex(child *Node, index int) {
	if child.Parent != n {
		panic("lumen: child's parent is not this node")
	}
	nc := len(n.children)
	if index < 0 || index >= nc {
		panic("lumen: child index out of range")
	}
	oldIndex := -1
	for i, c := range n.children {
		if c == child {
			oldIndex = i
			break
		}
	}
	if oldIndex == index {
		return
	}
	// Shift elements to fill the gap and open the target slot.
	if oldIndex < index {
		copy(n.children[oldIndex:], n.children[oldIndex+1:index+1])
	} else {
		copy(n.children[index+1:], n.children[index:oldIndex])
	}
	n.children[index] = child
	n.childrenSorted = false
}

// SetZIndex sets the node's ZIndex and marks the parent's children as unsorted,
// so the next traversal will re-sort siblings by ZIndex.
func (n *Node) SetZIndex(z int) {
	if n.ZIndex == z {
		return
	}
	n.ZIndex = z
	if n.Parent != nil {
		n.Parent.childrenSorted = false
	}
	invalidateAncestorCache(n)
}

// --- Static subtree command cache API ---

// staticCacheData is the per-node state behind SetStaticCache.
type staticCacheData struct {
	valid   bool
	blocked bool
}

// SetStaticCache enables or disables the static cache state on this
// container's subtree. Enabling allocates the state and marks it invalid;
// InvalidateStaticCache and changes inside the subtree mark it invalid again.
// Traversal does not read this state: no render commands are captured or
// replayed, and IsStaticCacheValid reports false.
func (n *Node) SetStaticCache(enabled bool) {
	if enabled {
		if n.staticCache == nil {
			n.staticCache = &staticCacheData{}
		}
		n.staticCache.valid = false
		n.staticCache.blocked = false
	} else {
		n.staticCache = nil
	}
}

// InvalidateStaticCache marks the static cache state invalid.
// No-op if static caching is not enabled.
func (n *Node) InvalidateStaticCache() {
	if n.staticCache != nil {
		n.staticCache.valid = false
	}
}

// IsStaticCacheValid reports whether the static cache has valid cached commands.
func (n *Node) IsStaticCacheValid() bool {
	return n.staticCache != nil && n.staticCache.valid
}

// invalidateAncestorCache walks up the tree from n to find the nearest
// ancestor with a static cache and marks it invalid.
func invalidateAncestorCache(n *Node) {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.staticCache != nil {
			p.staticCache.valid = false
			return
		}
	}
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.emitBeforeDestroy()
	n.RemoveFromParent()
	n.dispose()
}

// emitBeforeDestroy fires EventBeforeDestroy on this node and its descendants,
// parent-first, before any detachment happens.
func (n *Node) emitBeforeDestroy() {
	n.events.emit(EventBeforeDestroy, LifecycleData{Node: n})
	for _, child := range n.children {
		child.emitBeforeDestroy()
	}
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.sortedChildren = nil
	n.Parent = nil
	n.Filters = nil
	n.cacheEnabled = false
	if n.cacheTexture != nil {
		n.cacheTexture.Deallocate()
		n.cacheTexture = nil
	}
	n.cacheDirty = false
	n.mask = nil
	n.staticCache = nil
	n.customImage = nil
	n.TextBlock = nil
	n.UserData = nil
	n.events.listeners = nil
}

// SetMask sets a node whose alpha channel masks this node's rendered output.
// The mask node is not part of the scene tree: it is never traversed as a
// child and its transform is relative to the masked node.
func (n *Node) SetMask(maskNode *Node) {
	n.mask = maskNode
	invalidateAncestorCache(n)
}

// ClearMask removes the mask set by SetMask, if any.
func (n *Node) ClearMask() {
	n.mask = nil
	invalidateAncestorCache(n)
}

// GetMask returns the node's current mask, or nil if none is set.
func (n *Node) GetMask() *Node {
	return n.mask
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// markSubtreeDirty marks a node as needing transform and alpha recomputation.
// Children inherit the recomputation because updateWorldTransform marks them
// with markTransformForced when their parent was recomputed, so only the
// subtree root needs the flag set.
func markSubtreeDirty(node *Node) {
	invalidateAncestorCache(node)
	node.transformDirty = true
	node.alphaDirty = true
}
