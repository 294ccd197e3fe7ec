package lumen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// decodeRequest is the input a background worker consumes: raw encoded image
// bytes plus crop/premultiply hints. The id is echoed back in the matching
// decodeResult so a caller can pair each response with its request.
type decodeRequest struct {
	id          uuid.UUID
	data        []byte
	crop        Rect
	premultiply bool
}

// decodeResult is the worker's output: a decoded RGBA buffer and dimensions,
// or an ErrorKind on failure. No GPU handle is ever produced here — uploads
// happen only on the caller's goroutine, per the no-GPU-on-worker rule.
type decodeResult struct {
	id     uuid.UUID
	pix    *image.RGBA
	width  int
	height int
	kind   ErrorKind
	err    error
}

// ImageDecodePool bounds concurrent image decode work to numWorkers. It
// decodes off the calling goroutine; GL/GPU upload remains the caller's
// responsibility.
type ImageDecodePool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewImageDecodePool creates a pool bounded to numWorkers concurrent decodes.
// numWorkers <= 0 is treated as 1.
func NewImageDecodePool(numWorkers int) *ImageDecodePool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &ImageDecodePool{sem: semaphore.NewWeighted(int64(numWorkers))}
}

// Submit decodes req.data asynchronously and delivers the result on the
// returned channel. The channel is buffered so a caller that abandons the
// request (source freed before the reply arrives) never blocks the worker.
func (p *ImageDecodePool) Submit(ctx context.Context, req decodeRequest) <-chan decodeResult {
	out := make(chan decodeResult, 1)
	if err := p.sem.Acquire(ctx, 1); err != nil {
		out <- decodeResult{id: req.id, kind: ErrKindTextureLoadDecode, err: err}
		close(out)
		return out
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		out <- decodeOne(req)
		close(out)
	}()
	return out
}

// Wait blocks until every in-flight decode has finished, for clean shutdown.
func (p *ImageDecodePool) Wait() {
	p.wg.Wait()
}

func decodeOne(req decodeRequest) decodeResult {
	img, _, err := image.Decode(bytes.NewReader(req.data))
	if err != nil {
		return decodeResult{id: req.id, kind: ErrKindTextureLoadDecode, err: fmt.Errorf("lumen: decode image: %w", err)}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return decodeResult{id: req.id, kind: ErrKindTextureLoadDimensions, err: ErrTextureLoadDimensions}
	}

	rgba := image.NewRGBA(b)
	drawCopy(rgba, img)
	if req.crop.Width > 0 && req.crop.Height > 0 {
		rgba = cropRGBA(rgba, req.crop)
	}
	if req.premultiply {
		premultiplyRGBA(rgba)
	}
	return decodeResult{id: req.id, pix: rgba, width: rgba.Bounds().Dx(), height: rgba.Bounds().Dy()}
}

// drawCopy converts an arbitrary image.Image into the destination RGBA,
// avoiding an import of image/draw for a single nearest-case conversion.
func drawCopy(dst *image.RGBA, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
}

func cropRGBA(src *image.RGBA, r Rect) *image.RGBA {
	rect := image.Rect(int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height)).Intersect(src.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	drawCopy(out, src.SubImage(rect))
	return out
}

func premultiplyRGBA(img *image.RGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i+3])
		img.Pix[i] = uint8(uint32(img.Pix[i]) * a / 255)
		img.Pix[i+1] = uint8(uint32(img.Pix[i+1]) * a / 255)
		img.Pix[i+2] = uint8(uint32(img.Pix[i+2]) * a / 255)
	}
}
