package lumen

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// batchKey groups render commands that can be submitted in a single draw call.
// A clip rect change forces a new key (and thus a flush) because clipping is
// enforced by swapping the draw destination to a SubImage, which can't vary
// within one DrawTriangles32 call.
type batchKey struct {
	targetID uint16
	shaderID uint16
	blend    BlendMode
	page     uint16
	clip     Rect
	hasClip  bool
}

func commandBatchKey(cmd *RenderCommand) batchKey {
	return batchKey{
		targetID: cmd.TargetID,
		shaderID: cmd.ShaderID,
		blend:    cmd.BlendMode,
		page:     cmd.TextureRegion.Page,
		clip:     cmd.ClipRect,
		hasClip:  cmd.HasClip,
	}
}

// clipDestination returns the draw destination for a command: target itself
// if unclipped, or a SubImage of target intersected with the clip rect
// otherwise. Ebitengine has no per-draw scissor rect, so clipping is
// implemented by narrowing the destination image.
func clipDestination(target *ebiten.Image, clip Rect, hasClip bool) *ebiten.Image {
	if !hasClip {
		return target
	}
	b := target.Bounds()
	r := image.Rect(int(clip.X), int(clip.Y), int(clip.X+clip.Width), int(clip.Y+clip.Height)).Intersect(b)
	if r.Empty() {
		return nil
	}
	return target.SubImage(r).(*ebiten.Image)
}

// submitBatches iterates sorted commands and draws each sprite command to the
// target image with its own DrawImage call (submitSprite); commands are not
// grouped.
func (s *Scene) submitBatches(target *ebiten.Image) {
	if len(s.commands) == 0 {
		return
	}

	var op ebiten.DrawImageOptions

	for i := range s.commands {
		cmd := &s.commands[i]

		switch cmd.Type {
		case CommandSprite:
			s.submitSprite(target, cmd, &op)
		}
	}
}

// submitSprite draws a single sprite command using DrawImage.
func (s *Scene) submitSprite(target *ebiten.Image, cmd *RenderCommand, op *ebiten.DrawImageOptions) {
	target = clipDestination(target, cmd.ClipRect, cmd.HasClip)
	if target == nil {
		return
	}

	// Direct image path: draw a pre-rendered offscreen texture directly.
	if cmd.directImage != nil {
		op.GeoM.Reset()
		op.GeoM.Concat(commandGeoM(cmd))
		op.ColorScale.Reset()
		a := cmd.Color.A
		if a == 0 && cmd.Color.R == 0 && cmd.Color.G == 0 && cmd.Color.B == 0 {
			a = 1
			op.ColorScale.Scale(1, 1, 1, 1)
		} else {
			op.ColorScale.Scale(cmd.Color.R*a, cmd.Color.G*a, cmd.Color.B*a, a)
		}
		op.Blend = cmd.BlendMode.EbitenBlend()
		target.DrawImage(cmd.directImage, op)
		return
	}

	r := &cmd.TextureRegion

	// Resolve the atlas page image.
	var page *ebiten.Image
	if r.Page == magentaPlaceholderPage {
		page = ensureMagentaImage()
	} else if int(r.Page) < len(s.pages) {
		page = s.pages[r.Page]
	}
	if page == nil {
		return
	}

	// Compute SubImage rect
	var subRect image.Rectangle
	if r.Rotated {
		subRect = image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Height), int(r.Y)+int(r.Width))
	} else {
		subRect = image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
	}
	subImg := page.SubImage(subRect).(*ebiten.Image)

	op.GeoM.Reset()

	// Handle rotated regions: rotate -90° and shift
	if r.Rotated {
		// Rotated regions in atlas are stored rotated 90° CW.
		// To draw correctly: rotate -90° (CCW) then shift down by the stored
		// image's width (r.Height).
		op.GeoM.Rotate(-1.5707963267948966) // -π/2
		op.GeoM.Translate(0, float64(r.Height))
	}

	// Apply trim offset
	if r.OffsetX != 0 || r.OffsetY != 0 {
		op.GeoM.Translate(float64(r.OffsetX), float64(r.OffsetY))
	}

	// Apply world transform
	op.GeoM.Concat(commandGeoM(cmd))

	// Apply premultiplied color scale
	op.ColorScale.Reset()
	a := cmd.Color.A
	if a == 0 && cmd.Color.R == 0 && cmd.Color.G == 0 && cmd.Color.B == 0 {
		a = 1
		op.ColorScale.Scale(1, 1, 1, 1)
	} else {
		op.ColorScale.Scale(cmd.Color.R*a, cmd.Color.G*a, cmd.Color.B*a, a)
	}

	op.Blend = cmd.BlendMode.EbitenBlend()

	target.DrawImage(subImg, op)
}

// commandGeoM converts a command's [6]float64 transform into an ebiten.GeoM.
func commandGeoM(cmd *RenderCommand) ebiten.GeoM {
	var m ebiten.GeoM
	m.SetElement(0, 0, float64(cmd.Transform[0]))
	m.SetElement(1, 0, float64(cmd.Transform[1]))
	m.SetElement(0, 1, float64(cmd.Transform[2]))
	m.SetElement(1, 1, float64(cmd.Transform[3]))
	m.SetElement(0, 2, float64(cmd.Transform[4]))
	m.SetElement(1, 2, float64(cmd.Transform[5]))
	return m
}

// --- Coalesced batching (BatchModeCoalesced) ---

// submitBatchesCoalesced iterates sorted commands, coalescing consecutive
// same-key atlas sprites into a single DrawTriangles32 call.
func (s *Scene) submitBatchesCoalesced(target *ebiten.Image) {
	if len(s.commands) == 0 {
		return
	}

	s.batchVerts = s.batchVerts[:0]
	s.batchInds = s.batchInds[:0]

	var currentKey batchKey
	inRun := false
	var op ebiten.DrawImageOptions

	for i := range s.commands {
		cmd := &s.commands[i]

		switch cmd.Type {
		case CommandSprite:
			if cmd.directImage != nil {
				// Direct-image sprites cannot be coalesced (different source images).
				s.flushSpriteBatch(target, currentKey)
				inRun = false
				s.submitSprite(target, cmd, &op)
				continue
			}

			key := commandBatchKey(cmd)
			if inRun && key != currentKey {
				s.flushSpriteBatch(target, currentKey)
			}
			currentKey = key
			inRun = true
			s.appendSpriteQuad(cmd)
		}
	}

	s.flushSpriteBatch(target, currentKey)
}

// appendSpriteQuad appends 4 vertices and 6 indices for a single atlas sprite.
func (s *Scene) appendSpriteQuad(cmd *RenderCommand) {
	r := &cmd.TextureRegion
	t := &cmd.Transform // [a, b, c, d, tx, ty]

	// Local quad corners before world transform.
	ox := float32(r.OffsetX)
	oy := float32(r.OffsetY)
	w := float32(r.Width)
	h := float32(r.Height)

	// Affine transform components.
	a, b, c, d, tx, ty := t[0], t[1], t[2], t[3], t[4], t[5]

	// Precompute local corner positions: TL, TR, BL, BR.
	x0, y0 := ox, oy     // TL
	x1, y1 := ox+w, oy   // TR
	x2, y2 := ox, oy+h   // BL
	x3, y3 := ox+w, oy+h // BR

	// Source UVs (pixel coordinates on the atlas page).
	var sx0, sy0, sx1, sy1, sx2, sy2, sx3, sy3 float32
	if r.Rotated {
		rx := float32(r.X)
		ry := float32(r.Y)
		rh := float32(r.Height) // stored width in atlas
		rw := float32(r.Width)  // stored height in atlas
		sx0, sy0 = rx+rh, ry    // TL
		sx1, sy1 = rx+rh, ry+rw // TR
		sx2, sy2 = rx, ry       // BL
		sx3, sy3 = rx, ry+rw    // BR
	} else {
		rx := float32(r.X)
		ry := float32(r.Y)
		rw := float32(r.Width)
		rh := float32(r.Height)
		sx0, sy0 = rx, ry       // TL
		sx1, sy1 = rx+rw, ry    // TR
		sx2, sy2 = rx, ry+rh    // BL
		sx3, sy3 = rx+rw, ry+rh // BR
	}

	// Premultiplied per-corner RGBA. Zero-color sentinel (on the uniform
	// Color, not a corner) → opaque white, for back-compat with commands
	// that never populated Corners (e.g. built before gradient support).
	corners := cmd.Corners
	if corners == ([4]color32{}) {
		a := cmd.Color.A
		if a == 0 && cmd.Color.R == 0 && cmd.Color.G == 0 && cmd.Color.B == 0 {
			corners = [4]color32{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}}
		} else {
			c := color32{cmd.Color.R * a, cmd.Color.G * a, cmd.Color.B * a, a}
			corners = [4]color32{c, c, c, c}
		}
	} else {
		for i, c := range corners {
			corners[i] = color32{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
		}
	}

	base := uint32(len(s.batchVerts))

	// Inline 4 vertex computations (no loop, no intermediate arrays).
	s.batchVerts = append(s.batchVerts,
		ebiten.Vertex{
			DstX: a*x0 + c*y0 + tx, DstY: b*x0 + d*y0 + ty,
			SrcX: sx0, SrcY: sy0,
			ColorR: corners[0].R, ColorG: corners[0].G, ColorB: corners[0].B, ColorA: corners[0].A,
		},
		ebiten.Vertex{
			DstX: a*x1 + c*y1 + tx, DstY: b*x1 + d*y1 + ty,
			SrcX: sx1, SrcY: sy1,
			ColorR: corners[1].R, ColorG: corners[1].G, ColorB: corners[1].B, ColorA: corners[1].A,
		},
		ebiten.Vertex{
			DstX: a*x2 + c*y2 + tx, DstY: b*x2 + d*y2 + ty,
			SrcX: sx2, SrcY: sy2,
			ColorR: corners[2].R, ColorG: corners[2].G, ColorB: corners[2].B, ColorA: corners[2].A,
		},
		ebiten.Vertex{
			DstX: a*x3 + c*y3 + tx, DstY: b*x3 + d*y3 + ty,
			SrcX: sx3, SrcY: sy3,
			ColorR: corners[3].R, ColorG: corners[3].G, ColorB: corners[3].B, ColorA: corners[3].A,
		},
	)

	// Two triangles: TL-TR-BL, TR-BR-BL
	s.batchInds = append(s.batchInds,
		base+0, base+1, base+2,
		base+1, base+3, base+2,
	)
}

// flushSpriteBatch submits accumulated vertices as a single DrawTriangles32 call.
func (s *Scene) flushSpriteBatch(target *ebiten.Image, key batchKey) {
	if len(s.batchVerts) == 0 {
		return
	}

	var page *ebiten.Image
	if key.page == magentaPlaceholderPage {
		page = ensureMagentaImage()
	} else if int(key.page) < len(s.pages) {
		page = s.pages[key.page]
	}
	dst := clipDestination(target, key.clip, key.hasClip)
	if page == nil || dst == nil {
		s.batchVerts = s.batchVerts[:0]
		s.batchInds = s.batchInds[:0]
		return
	}

	var triOp ebiten.DrawTrianglesOptions
	triOp.Blend = key.blend.EbitenBlend()
	triOp.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha

	dst.DrawTriangles32(s.batchVerts, s.batchInds, page, &triOp)

	s.batchVerts = s.batchVerts[:0]
	s.batchInds = s.batchInds[:0]
}

