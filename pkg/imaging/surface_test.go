package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/novvoo/go-cairo/pkg/cairo"
	"golang.org/x/image/draw"
)

func TestSurfaceCanvasReceivesCairoDrawing(t *testing.T) {
	surface, canvas, err := NewSurface(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer surface.Destroy()

	cctx := cairo.NewContext(surface)
	cctx.SetSourceRGB(1, 0, 0)
	cctx.Rectangle(2, 2, 6, 6)
	cctx.Fill()
	cctx.Destroy()

	if got := canvas.RGBAAt(5, 5); got.R < 250 || got.G > 5 || got.A < 250 {
		t.Errorf("filled pixel = %+v, want opaque red", got)
	}
	if got := canvas.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("untouched pixel = %+v, want transparent", got)
	}

	out, err := FromSurface(surface)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.NRGBAAt(5, 5); got.R < 250 || got.A < 250 {
		t.Errorf("read back pixel = %+v, want opaque red", got)
	}
}

func TestSurfaceRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{20, 40, 60, 255})
		}
	}
	surf, _, err := ToSurface(src)
	if err != nil {
		t.Fatal(err)
	}
	defer surf.Destroy()

	out, err := FromSurface(surf)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 3 || out.Bounds().Dy() != 2 {
		t.Fatalf("size = %v, want 3x2", out.Bounds().Size())
	}
	if got := out.NRGBAAt(2, 1); got != (color.NRGBA{20, 40, 60, 255}) {
		t.Errorf("pixel = %+v, want {20 40 60 255}", got)
	}
}

func TestToSurfaceRejectsEmpty(t *testing.T) {
	if _, _, err := ToSurface(image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("err = %v, want ErrEmptyImage", err)
	}
}

func TestNewSurfaceRejectsInvalidSize(t *testing.T) {
	if _, _, err := NewSurface(0, 10); err == nil {
		t.Error("zero width surface should fail")
	}
}

func whiteCanvas(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	return dst
}

func TestCompositePlacesScaledImage(t *testing.T) {
	dst := whiteCanvas(20, 20)
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(src, src.Bounds(), image.Black, image.Point{}, draw.Src)

	// 2x2 放大 5 倍，左上角位于 (5,5)
	m := cairo.Matrix{XX: 5, YY: 5, X0: 5, Y0: 5}
	if err := Composite(dst, src, m, 1); err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{7, 7}, {12, 12}, {14, 5}} {
		if got := dst.RGBAAt(p.X, p.Y); got.R > 10 {
			t.Errorf("pixel %v = %+v, want black", p, got)
		}
	}
	for _, p := range []image.Point{{2, 2}, {16, 16}, {4, 12}} {
		if got := dst.RGBAAt(p.X, p.Y); got.R != 255 {
			t.Errorf("pixel %v = %+v, want untouched white", p, got)
		}
	}
}

func TestCompositeAppliesOpacity(t *testing.T) {
	dst := whiteCanvas(4, 4)
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(src, src.Bounds(), image.Black, image.Point{}, draw.Src)

	if err := Composite(dst, src, cairo.Matrix{XX: 1, YY: 1}, 0.5); err != nil {
		t.Fatal(err)
	}
	if got := dst.RGBAAt(2, 2); got.R < 120 || got.R > 136 || got.A != 255 {
		t.Errorf("half-transparent black over white = %+v, want mid grey", got)
	}
}

func TestCompositeIgnoresSingularMatrix(t *testing.T) {
	dst := whiteCanvas(4, 4)
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(src, src.Bounds(), image.Black, image.Point{}, draw.Src)

	if err := Composite(dst, src, cairo.Matrix{XX: 1}, 1); err != nil {
		t.Fatal(err)
	}
	if got := dst.RGBAAt(0, 0); got.R != 255 {
		t.Errorf("singular matrix must not draw, got %+v", got)
	}
}
