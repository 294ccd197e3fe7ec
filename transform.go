package lumen

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform computes the local affine matrix from the node's
// transform properties. Returns [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Translate(X-MountX*W, Y-MountY*H) -> Translate(PivotX*W, PivotY*H) ->
//	Rotate -> Skew -> Scale -> Translate(-PivotX*W, -PivotY*H)
//
// PivotX/PivotY and MountX/MountY are fractions of (Width, Height); the pivot
// is the point scale/skew/rotation are applied around, the mount is the point
// of the box that (X, Y) positions. Skew is inserted between rotate and scale.
func computeLocalTransform(n *Node) [6]float64 {
	sx := n.ScaleX
	sy := n.ScaleY

	sin, cos := math.Sincos(n.Rotation)

	var tanSkewX, tanSkewY float64
	if n.SkewX != 0 {
		tanSkewX = math.Tan(n.SkewX)
	}
	if n.SkewY != 0 {
		tanSkewY = math.Tan(n.SkewY)
	}

	pivotPxX := n.PivotX * n.Width
	pivotPxY := n.PivotY * n.Height
	mountPxX := n.MountX * n.Width
	mountPxY := n.MountY * n.Height

	// After Scale * Translate(-pivot):
	//   a=sx, b=0, c=0, d=sy, tx=-pivotPxX*sx, ty=-pivotPxY*sy
	//
	// After Skew:
	a := sx
	b := tanSkewY * sx
	c := tanSkewX * sy
	d := sy

	preTx := -pivotPxX*sx - tanSkewX*pivotPxY*sy
	preTy := -tanSkewY*pivotPxX*sx - pivotPxY*sy

	// After Rotate:
	ra := cos*a - sin*b
	rb := sin*a + cos*b
	rc := cos*c - sin*d
	rd := sin*c + cos*d
	rtx := cos*preTx - sin*preTy
	rty := sin*preTx + cos*preTy

	// After Translate(pivot) then Translate(X-mount, Y-mount):
	tx := rtx + pivotPxX + (n.X - mountPxX)
	ty := rty + pivotPxY + (n.Y - mountPxY)

	return [6]float64{ra, rb, rc, rd, tx, ty}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular (determinant â‰ˆ 0).
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// worldCascade carries the inherited state threaded down the tree by
// updateWorldTransform: world transform, world alpha, accumulated tint,
// active clip rect, and the zIndexLocked ancestor (if any).
type worldCascade struct {
	transform [6]float64
	alpha     float64
	tint      Color
	clip      Rect
	clipValid bool
	lockedZ   *Node
}

// rootCascade returns the identity cascade state used as the root's parent.
func rootCascade() worldCascade {
	return worldCascade{transform: identityTransform, alpha: 1, tint: ColorWhite}
}

// updateWorldTransform recomputes a node's worldTransform, worldAlpha, world
// corner colors, world clip rect, and render-bounds classification, then
// recurses into children. viewport and boundsMargin drive the render-bounds
// classification; pass a negative boundsMargin to skip the classification
// (e.g. before the first camera viewport is known).
func updateWorldTransform(n *Node, parent worldCascade, viewport Rect, boundsMargin float64) {
	recompute := n.transformDirty || n.dirty&(DirtyLocal|DirtyTransform) != 0
	if recompute {
		local := computeLocalTransform(n)
		n.worldTransform = multiplyAffine(parent.transform, local)
	}

	recomputeAlpha := recompute || n.alphaDirty || n.dirty&DirtyWorldAlpha != 0
	if recomputeAlpha {
		n.worldAlpha = parent.alpha * n.Alpha
	}

	recomputeColor := recompute || recomputeAlpha || n.dirty&DirtyWorldColor != 0
	if recomputeColor {
		n.worldColorTl = parent.tint.mul(n.ColorTl)
		n.worldColorTr = parent.tint.mul(n.ColorTr)
		n.worldColorBl = parent.tint.mul(n.ColorBl)
		n.worldColorBr = parent.tint.mul(n.ColorBr)
	}

	recomputeClip := recompute || n.dirty&DirtyClipping != 0
	if recomputeClip {
		if n.Clipping {
			box := nodeWorldAABB(n)
			if parent.clipValid {
				n.worldClip, n.worldClipValid = rectIntersection(parent.clip, box)
			} else {
				n.worldClip, n.worldClipValid = box, true
			}
		} else {
			n.worldClip, n.worldClipValid = parent.clip, parent.clipValid
		}
	}

	recomputeBounds := recompute || n.dirty&DirtyRenderBounds != 0
	if recomputeBounds {
		n.renderBounds = nodeWorldAABB(n)
		if boundsMargin >= 0 {
			prev := n.boundsState
			n.boundsState = classifyRenderBounds(n.renderBounds, viewport, boundsMargin)
			if n.boundsState != prev {
				emitBoundsTransition(n, n.boundsState)
			}
		}
	}

	n.lockedZNode = parent.lockedZ
	n.ancestorTint = parent.tint

	n.transformDirty = false
	n.alphaDirty = false
	n.dirty &^= DirtyLocal | DirtyTransform | DirtyWorldAlpha | DirtyWorldColor | DirtyClipping | DirtyRenderBounds

	childParent := worldCascade{
		transform: n.worldTransform,
		alpha:     n.worldAlpha,
		tint:      parent.tint.mul(n.Color),
		clip:      n.worldClip,
		clipValid: n.worldClipValid,
		lockedZ:   parent.lockedZ,
	}
	if n.ZIndexLocked {
		childParent.lockedZ = n
	}

	forceChildren := recompute || recomputeAlpha || recomputeColor || recomputeClip
	for _, child := range n.children {
		if forceChildren {
			markTransformForced(child)
		}
		updateWorldTransform(child, childParent, viewport, boundsMargin)
	}
}

// effectiveGlobalOrder returns the GlobalOrder used to sort this node's render
// command. If an ancestor has ZIndexLocked set, every descendant command
// sorts at that ancestor's GlobalOrder instead of its own, so the subtree
// can't be pulled out of its slot in the parent's draw order; treeOrder still
// breaks ties within the locked subtree.
func effectiveGlobalOrder(n *Node) int {
	if n.lockedZNode != nil {
		return n.lockedZNode.GlobalOrder
	}
	return n.GlobalOrder
}

// emitBoundsTransition fires the lifecycle event matching a node's new
// RenderBoundsState, used for streaming/LOD decisions.
func emitBoundsTransition(n *Node, state RenderBoundsState) {
	switch state {
	case BoundsInViewport:
		n.events.emit(EventInViewport, LifecycleData{Node: n})
	case BoundsInBounds:
		n.events.emit(EventInBounds, LifecycleData{Node: n})
	case BoundsOutOfBounds:
		n.events.emit(EventOutOfBounds, LifecycleData{Node: n})
	}
}

// markTransformForced forces a child to recompute even if nothing on it
// changed locally, because an ancestor quantity it inherits did change.
func markTransformForced(n *Node) {
	n.transformDirty = true
}

// nodeWorldAABB returns the axis-aligned bounding box, in world space, of
// this node's (Width, Height) content box under its current worldTransform.
func nodeWorldAABB(n *Node) Rect {
	w, h := n.Width, n.Height
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
	for _, c := range corners {
		wx, wy := transformPoint(n.worldTransform, c[0], c[1])
		minX = math.Min(minX, wx)
		maxX = math.Max(maxX, wx)
		minY = math.Min(minY, wy)
		maxY = math.Max(maxY, wy)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// rectIntersection returns the intersection of a and b, and false if they
// don't overlap (in which case the returned Rect is the zero value).
func rectIntersection(a, b Rect) (Rect, bool) {
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.X+a.Width, b.X+b.Width)
	y1 := math.Min(a.Y+a.Height, b.Y+b.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

// classifyRenderBounds compares bounds against viewport and viewport expanded
// by margin on every side.
func classifyRenderBounds(bounds, viewport Rect, margin float64) RenderBoundsState {
	if bounds.Intersects(viewport) {
		return BoundsInViewport
	}
	outer := Rect{
		X: viewport.X - margin, Y: viewport.Y - margin,
		Width: viewport.Width + 2*margin, Height: viewport.Height + 2*margin,
	}
	if bounds.Intersects(outer) {
		return BoundsInBounds
	}
	return BoundsOutOfBounds
}

// --- Transform property setters ---

// SetPosition sets the node's local X and Y and marks it dirty.
func (n *Node) SetPosition(x, y float64) {
	n.X = x
	n.Y = y
	n.transformDirty = true
}

// SetScale sets the node's ScaleX and ScaleY and marks it dirty.
func (n *Node) SetScale(sx, sy float64) {
	n.ScaleX = sx
	n.ScaleY = sy
	n.transformDirty = true
}

// SetRotation sets the node's rotation (in radians) and marks it dirty.
func (n *Node) SetRotation(r float64) {
	n.Rotation = r
	n.transformDirty = true
}

// SetSkew sets the node's SkewX and SkewY and marks it dirty.
func (n *Node) SetSkew(sx, sy float64) {
	n.SkewX = sx
	n.SkewY = sy
	n.transformDirty = true
}

// SetPivot sets the node's PivotX and PivotY, as fractions of (Width, Height),
// and marks it dirty.
func (n *Node) SetPivot(px, py float64) {
	n.PivotX = px
	n.PivotY = py
	n.transformDirty = true
}

// SetAlpha sets the node's alpha and marks it dirty.
func (n *Node) SetAlpha(a float64) {
	n.Alpha = a
	n.alphaDirty = true
}

// MarkDirty marks the node's transform as dirty, forcing recomputation
// on the next frame. Useful after bulk-setting fields directly.
func (n *Node) MarkDirty() {
	n.transformDirty = true
}

// --- Coordinate conversion ---

// WorldToLocal converts a world-space point to this node's local coordinate space.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	inv := invertAffine(n.worldTransform)
	return transformPoint(inv, wx, wy)
}

// LocalToWorld converts a local-space point to world-space.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return transformPoint(n.worldTransform, lx, ly)
}
