package lumen

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// BatchMode controls how the render pipeline submits draw calls.
type BatchMode uint8

const (
	// BatchModeCoalesced accumulates vertices and submits one DrawTriangles32 per batch key run.
	// This is the default mode.
	BatchModeCoalesced BatchMode = iota
	// BatchModeImmediate submits one DrawImage per sprite (legacy).
	BatchModeImmediate
)

const defaultCommandCap = 4096

// defaultBoundsMargin is the out-of-the-box BoundsMargin, matching
// DefaultSettings().BoundsMargin.
const defaultBoundsMargin = 256

// Scene is the top-level object that owns the node tree, the viewport,
// and render buffers.
type Scene struct {
	root  *Node
	debug bool

	// transformsReady is set to true after the first updateWorldTransform call.
	// Used by Draw to ensure transforms are computed even if Update hasn't run.
	transformsReady bool

	// ClearColor is the background color used to fill the screen each frame
	// when the scene is run via [Run]. If left at the zero value (transparent
	// black), the screen is not filled, resulting in a black background.
	ClearColor Color

	// Viewport is the world-space rectangle used for render-bounds
	// classification (Node.boundsState) and for culling during Draw.
	Viewport Rect
	// BoundsMargin expands Viewport on every side for the "inBounds" (as
	// opposed to "inViewport") render-bounds classification, giving
	// off-screen-but-nearby nodes a chance to preload before they're visible.
	BoundsMargin float64

	updateFunc func() error // user callback set via SetUpdateFunc

	// Batch mode
	batchMode  BatchMode
	batchVerts []ebiten.Vertex // preallocated vertex accumulation buffer
	batchInds  []uint32        // preallocated index accumulation buffer

	// Render state
	commands      []RenderCommand
	sortBuf       []RenderCommand
	pages         []*ebiten.Image
	nextPage      int        // next available page index for LoadAtlas
	viewTransform [6]float64 // current view matrix
	cullBounds    Rect       // current cull bounds, set per-frame from Viewport
	cullActive    bool       // whether culling is active for the current frame

	// CacheAsTree state
	buildingCacheFor       *Node // non-nil when traversing under a cache-miss node
	commandsDirtyThisFrame bool  // true when any cache miss or uncached nodes emitted

	// Render target pool and offscreen buffers
	rtPool        renderTexturePool
	rtDeferred    []*ebiten.Image
	offscreenCmds []RenderCommand
}

// NewScene creates a new scene with a pre-created root container.
func NewScene() *Scene {
	root := NewContainer("root")
	return &Scene{
		root:         root,
		commands:     make([]RenderCommand, 0, defaultCommandCap),
		sortBuf:      make([]RenderCommand, 0, defaultCommandCap),
		BoundsMargin: defaultBoundsMargin,
	}
}

// updateCascade refreshes world transforms, world colors, world clip rects,
// and render-bounds classification for the whole tree, rooted at the
// identity cascade.
func (s *Scene) updateCascade() {
	updateWorldTransform(s.root, rootCascade(), s.Viewport, s.BoundsMargin)
}

// Root returns the scene's root container node. The root node cannot be
// removed or disposed; it always exists for the lifetime of the Scene.
func (s *Scene) Root() *Node {
	return s.root
}

// RunConfig holds optional configuration for [Run].
type RunConfig struct {
	// Title sets the window title. Ignored on platforms without a title bar.
	Title string
	// Width and Height set the window size in device-independent pixels.
	// If zero, defaults to 640x480.
	Width, Height int
}

// SetUpdateFunc registers a callback that is called once per tick before
// [Scene.Update] when the scene is run via [Run]. Use it for app-specific
// logic. Pass nil to clear.
func (s *Scene) SetUpdateFunc(fn func() error) {
	s.updateFunc = fn
}

// Run is a convenience entry point that creates an Ebitengine game loop around
// the given Scene. It configures the window and calls [ebiten.RunGame].
//
// For full control over the game loop, skip Run and implement [ebiten.Game]
// yourself, calling [Scene.Update] and [Scene.Draw] directly.
func Run(scene *Scene, cfg RunConfig) error {
	w, h := cfg.Width, cfg.Height
	if w == 0 {
		w = 640
	}
	if h == 0 {
		h = 480
	}
	ebiten.SetWindowSize(w, h)
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	if scene.Viewport.Width == 0 && scene.Viewport.Height == 0 {
		scene.Viewport = Rect{Width: float64(w), Height: float64(h)}
	}
	g := &gameShell{scene: scene, w: w, h: h}
	return ebiten.RunGame(g)
}

// gameShell implements [ebiten.Game] by delegating to a Scene.
type gameShell struct {
	scene *Scene
	w, h  int
}

func (g *gameShell) Update() error {
	if g.scene.updateFunc != nil {
		if err := g.scene.updateFunc(); err != nil {
			return err
		}
	}
	g.scene.Update()
	return nil
}

func (g *gameShell) Draw(screen *ebiten.Image) {
	if g.scene.ClearColor.A > 0 {
		screen.Fill(g.scene.ClearColor.toRGBA())
	}
	g.scene.Draw(screen)
}

func (g *gameShell) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.w, g.h
}

// Update refreshes the dirty cascade and invokes each node's OnUpdate
// callback.
func (s *Scene) Update() {
	dt := float64(1.0 / float64(ebiten.TPS()))

	// Refresh world transforms first so bounds classification and OnUpdate
	// callbacks see accurate positions this frame.
	s.updateCascade()
	s.transformsReady = true

	updateNodes(s.root, dt)
}

// updateNodes walks visible nodes depth-first, invoking OnUpdate so callers
// can drive their own [AnimationController]s and other per-node state.
func updateNodes(n *Node, dt float64) {
	if !n.Visible {
		return
	}
	if n.OnUpdate != nil {
		n.OnUpdate(dt)
	}
	for _, child := range n.children {
		updateNodes(child, dt)
	}
}

// Draw traverses the scene tree, emits render commands, sorts them, and submits
// batches to the given screen image.
func (s *Scene) Draw(screen *ebiten.Image) {
	// Ensure world transforms are computed if Draw is called before Update
	// (e.g. manual game loop that skips the first Update call).
	if !s.transformsReady {
		s.updateCascade()
		s.transformsReady = true
	}

	s.commands = s.commands[:0]
	s.commandsDirtyThisFrame = false
	s.viewTransform = identityTransform
	s.cullActive = s.Viewport.Width > 0 || s.Viewport.Height > 0
	s.cullBounds = s.Viewport

	var stats debugStats
	var t0 time.Time

	if s.debug {
		t0 = time.Now()
	}

	treeOrder := 0
	s.traverse(s.root, &treeOrder)

	if s.debug {
		stats.traverseTime = time.Since(t0)
		t0 = time.Now()
	}

	if s.commandsDirtyThisFrame {
		s.mergeSort()
	}

	if s.debug {
		stats.sortTime = time.Since(t0)
		stats.commandCount = len(s.commands)
		t0 = time.Now()
	}

	if s.batchMode == BatchModeCoalesced {
		s.submitBatchesCoalesced(screen)
	} else {
		s.submitBatches(screen)
	}

	if s.debug {
		stats.submitTime = time.Since(t0)
		stats.batchCount = countBatches(s.commands)
		if s.batchMode == BatchModeCoalesced {
			stats.drawCallCount = countDrawCallsCoalesced(s.commands)
		} else {
			stats.drawCallCount = countDrawCalls(s.commands)
		}
		s.debugLog(stats)
	}

	// Release deferred pooled textures used as directImage during this frame.
	for _, img := range s.rtDeferred {
		s.rtPool.Release(img)
	}
	s.rtDeferred = s.rtDeferred[:0]
}

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics, tree depth and child count warnings are printed, and per-frame
// timing stats are logged to stderr.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
}

// SetBatchMode sets the draw-call batching strategy.
func (s *Scene) SetBatchMode(mode BatchMode) { s.batchMode = mode }

// GetBatchMode returns the current draw-call batching strategy.
func (s *Scene) GetBatchMode() BatchMode { return s.batchMode }

// globalDebug mirrors the most recently set Scene debug flag so that node
// operations (which lack a Scene pointer) can check it cheaply. Only valid
// with a single Scene; multiple Scenes with differing debug modes will
// reflect whichever called SetDebugMode last.
var globalDebug bool

// RegisterPage stores an atlas page image at the given index.
// The render compiler uses these to SubImage sprite regions.
func (s *Scene) RegisterPage(index int, img *ebiten.Image) {
	for len(s.pages) <= index {
		s.pages = append(s.pages, nil)
	}
	s.pages[index] = img
}

// LoadAtlas parses TexturePacker JSON, registers atlas pages with the scene,
// and returns the Atlas for region lookups. Pages are registered starting at
// the next available page index.
func (s *Scene) LoadAtlas(jsonData []byte, pages []*ebiten.Image) (*Atlas, error) {
	atlas, err := LoadAtlas(jsonData, pages)
	if err != nil {
		return nil, err
	}
	startIndex := s.nextPage
	for i, page := range pages {
		s.RegisterPage(startIndex+i, page)
	}
	s.nextPage = startIndex + len(pages)
	// Remap region page indices to account for startIndex offset.
	if startIndex > 0 {
		for name, r := range atlas.regions {
			r.Page += uint16(startIndex)
			atlas.regions[name] = r
		}
	}
	return atlas, nil
}
