// Package lumen is a retained-mode 2D scene-graph renderer for
// GPU-accelerated interfaces, built on [Ebitengine].
//
// Applications declare a tree of rectangular [Node]s with colors, textures,
// shaders, text, clipping, transforms, and alpha. Each frame the scene walks
// the tree, recomputes only what changed (the dirty cascade), batches the
// visible nodes into the minimum number of draw calls, and drives
// [AnimationController]s over node properties.
//
// # Quick start
//
//	scene := lumen.NewScene()
//	// ... add nodes under scene.Root() ...
//	lumen.Run(scene, lumen.RunConfig{Title: "My App", Width: 640, Height: 480})
//
// For full control over the game loop, implement [ebiten.Game] yourself and
// call [Scene.Update] and [Scene.Draw] directly:
//
//	type Game struct{ scene *lumen.Scene }
//
//	func (g *Game) Update() error              { g.scene.Update(); return nil }
//	func (g *Game) Draw(s *ebiten.Image)       { g.scene.Draw(s) }
//	func (g *Game) Layout(w, h int) (int, int) { return w, h }
//
// # Scene graph
//
// Every visual element is a [Node]. Nodes form a tree rooted at
// [Scene.Root]; children inherit their parent's transform, alpha, color
// tint, and clip rectangle. Create nodes with the typed constructors:
// [NewContainer], [NewSprite], [NewText].
//
//	container := lumen.NewContainer("ui")
//	scene.Root().AddChild(container)
//
//	sprite := lumen.NewSprite("hero", atlas.Region("hero_idle"))
//	sprite.X, sprite.Y = 100, 50
//	container.AddChild(sprite)
//
// For solid-color rectangles, use [NewSprite] with a zero-value
// [TextureRegion] and set [Node.Color] and [Node.Width]/[Node.Height]:
//
//	box := lumen.NewSprite("box", lumen.TextureRegion{})
//	box.SetSize(80, 40)
//	box.SetColor(lumen.Color{R: 0.3, G: 0.7, B: 1, A: 1})
//
// # Key features
//
// The renderer covers the scene graph and dirty cascade, a quad batcher that
// minimizes draw calls by shader/texture/clip/target identity,
// render-to-texture sub-passes, bitmap and TTF text, and an animation engine
// built on [gween] tweens with delay, repeat, loop, and reversible stop.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package lumen
