package lumen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
)

func encodeTestPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestImageDecodePoolDecodesSubmittedRequest(t *testing.T) {
	pool := NewImageDecodePool(2)
	data := encodeTestPNG(t, 8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	id := uuid.New()
	ch := pool.Submit(context.Background(), decodeRequest{id: id, data: data})
	res := <-ch
	pool.Wait()

	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.id != id {
		t.Errorf("result id = %v, want %v", res.id, id)
	}
	if res.width != 8 || res.height != 8 {
		t.Errorf("dims = %dx%d, want 8x8", res.width, res.height)
	}
}

func TestImageDecodePoolFailureKind(t *testing.T) {
	pool := NewImageDecodePool(1)
	ch := pool.Submit(context.Background(), decodeRequest{id: uuid.New(), data: []byte("not an image")})
	res := <-ch
	pool.Wait()

	if res.err == nil {
		t.Fatal("expected decode error")
	}
	if res.kind != ErrKindTextureLoadDecode {
		t.Errorf("kind = %v, want ErrKindTextureLoadDecode", res.kind)
	}
}

func TestImageDecodePoolCropAndPremultiply(t *testing.T) {
	pool := NewImageDecodePool(1)
	data := encodeTestPNG(t, 16, 16, color.RGBA{R: 200, G: 100, B: 50, A: 128})

	ch := pool.Submit(context.Background(), decodeRequest{
		id:          uuid.New(),
		data:        data,
		crop:        Rect{X: 0, Y: 0, Width: 4, Height: 4},
		premultiply: true,
	})
	res := <-ch
	pool.Wait()

	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.width != 4 || res.height != 4 {
		t.Errorf("dims = %dx%d, want 4x4 after crop", res.width, res.height)
	}
	r := res.pix.Pix[0]
	if r >= 200 {
		t.Errorf("expected premultiplied red channel to shrink from 200, got %d", r)
	}
}

func TestImageDecodePoolConcurrencyBound(t *testing.T) {
	pool := NewImageDecodePool(4)
	data := encodeTestPNG(t, 4, 4, color.RGBA{A: 255})

	chans := make([]<-chan decodeResult, 20)
	for i := range chans {
		chans[i] = pool.Submit(context.Background(), decodeRequest{id: uuid.New(), data: data})
	}
	for _, ch := range chans {
		res := <-ch
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
	}
	pool.Wait()
}
