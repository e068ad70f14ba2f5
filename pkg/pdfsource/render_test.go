package pdfsource

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/novvoo/go-pdfsign/internal/testpdf"
)

func renderPage(t *testing.T, page testpdf.Page, scale float64) image.Image {
	t.Helper()
	doc, err := Load(context.Background(), testpdf.Build(page))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	img, err := doc.RenderPage(context.Background(), 0, scale)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	return img
}

func pixel(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func isWhite(c color.NRGBA) bool {
	return c.R == 255 && c.G == 255 && c.B == 255 && c.A == 255
}

func TestRenderPageFillsPath(t *testing.T) {
	img := renderPage(t, testpdf.Page{Width: 100, Height: 50, Content: "0 0 1 rg 10 10 30 20 re f"}, 1)

	// PDF y 10..30 对应像素 y 20..40
	if c := pixel(img, 25, 30); c.B < 250 || c.R > 5 || c.G > 5 {
		t.Errorf("inside rect = %+v, want blue", c)
	}
	for _, p := range []image.Point{{5, 5}, {25, 10}, {60, 30}, {25, 45}} {
		if c := pixel(img, p.X, p.Y); !isWhite(c) {
			t.Errorf("pixel %v = %+v, want white", p, c)
		}
	}
}

func TestRenderPageScaleAndMediaBoxOffset(t *testing.T) {
	page := testpdf.Page{Width: 100, Height: 50, OffsetX: 50, OffsetY: 25, Content: "1 0 0 rg 50 25 20 10 re f"}
	img := renderPage(t, page, 2)

	// 左下角 20x10 的红色矩形，放大后占据 x 0..40、y 80..100
	if c := pixel(img, 20, 90); c.R < 250 || c.G > 5 || c.B > 5 {
		t.Errorf("bottom-left = %+v, want red", c)
	}
	if c := pixel(img, 60, 90); !isWhite(c) {
		t.Errorf("right of rect = %+v, want white", c)
	}
	if c := pixel(img, 20, 70); !isWhite(c) {
		t.Errorf("above rect = %+v, want white", c)
	}
}

func TestRenderPageStrokeAndGraphicsState(t *testing.T) {
	content := "q 0 g 2 0 0 2 0 0 cm 5 5 m 45 5 l S Q 1 0 0 RG 4 w 10 40 m 90 40 l S"
	img := renderPage(t, testpdf.Page{Width: 100, Height: 50, Content: content}, 1)

	// cm 放大 2 倍后水平线位于 PDF y=10，像素 y=40
	if c := pixel(img, 50, 40); c.R > 60 {
		t.Errorf("scaled stroke = %+v, want dark", c)
	}
	// Q 恢复 CTM，第二条线位于 PDF y=40，像素 y=10
	if c := pixel(img, 50, 10); c.R < 200 || c.G > 60 {
		t.Errorf("restored stroke = %+v, want red", c)
	}
	if c := pixel(img, 50, 25); !isWhite(c) {
		t.Errorf("between strokes = %+v, want white", c)
	}
}

func TestRenderPageDrawsImageXObject(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 50,
		Content: "q 40 0 0 20 10 10 cm /Im1 Do Q",
		Images:  []testpdf.Image{{Name: "Im1", Width: 2, Height: 1, Gray: []byte{0, 255}}},
	}
	img := renderPage(t, page, 1)

	if c := pixel(img, 15, 30); c.R > 60 {
		t.Errorf("left image half = %+v, want dark", c)
	}
	if c := pixel(img, 45, 30); c.R < 200 {
		t.Errorf("right image half = %+v, want light", c)
	}
	if c := pixel(img, 70, 30); !isWhite(c) {
		t.Errorf("outside image = %+v, want white", c)
	}
}

func TestRenderPageDrawsFormXObject(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 50,
		// 表单内未配对的 q 不影响外层的后续绘制
		Content: "/Fm1 Do 0 0 1 rg 0 0 10 10 re f",
		Forms:   []testpdf.Form{{Name: "Fm1", BBox: [4]float64{0, 0, 100, 50}, Content: "q 0 1 0 rg 60 10 20 20 re f q 5 0 0 5 0 0 cm"}},
	}
	img := renderPage(t, page, 1)

	if c := pixel(img, 70, 30); c.G < 250 || c.R > 5 || c.B > 5 {
		t.Errorf("form rect = %+v, want green", c)
	}
	if c := pixel(img, 5, 45); c.B < 250 || c.R > 5 {
		t.Errorf("rect after form = %+v, want blue", c)
	}
	if c := pixel(img, 30, 30); !isWhite(c) {
		t.Errorf("outside = %+v, want white", c)
	}
}

func TestRenderPageDrawsText(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 50,
		Content: "BT /F1 24 Tf 10 10 Td (HI) Tj ET",
		Fonts:   []string{"F1"},
	}
	img := renderPage(t, page, 1)

	// 基线在 PDF y=10（像素 y=40），字形位于其上方
	inked := 0
	for y := 15; y < 40; y++ {
		for x := 10; x < 60; x++ {
			if pixel(img, x, y).R < 128 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Error("expected glyph pixels above the baseline")
	}
	for x := 0; x < 100; x++ {
		if c := pixel(img, x, 45); !isWhite(c) {
			t.Fatalf("below baseline pixel %d = %+v, want white", x, c)
		}
	}
}

func TestRenderPageSkipsUnknownOperators(t *testing.T) {
	content := "foo /Missing Do 1 2 bar << /K 1 >> BDC EMC 0 g 10 10 20 20 re f"
	img := renderPage(t, testpdf.Page{Width: 100, Height: 50, Content: content}, 1)
	if c := pixel(img, 20, 30); c.R > 5 {
		t.Errorf("rect after unknown operators = %+v, want black", c)
	}
}

func TestRenderPageFallsBackToPreview(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 50,
		Content: "not deflate data",
		Filter:  "FlateDecode",
		Widgets: []testpdf.Widget{{Name: "f", Rect: [4]float64{10, 10, 40, 30}}},
	}
	img := renderPage(t, page, 1)

	if c := pixel(img, 80, 10); !isWhite(c) {
		t.Errorf("background = %+v, want white", c)
	}
	if c := pixel(img, 25, 30); !isWidgetTint(c) {
		t.Errorf("widget = %+v, want highlight", c)
	}
}

func TestRenderPageWidgetOverContent(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 50,
		Content: "0 g 0 0 100 50 re f",
		Widgets: []testpdf.Widget{{Name: "f", Rect: [4]float64{10, 10, 40, 30}, DA: "/Helv 0 Tf 0 g"}},
	}
	img := renderPage(t, page, 1)

	// 高亮半透明，下面的黑色内容仍然可见
	c := pixel(img, 25, 30)
	if c.B <= c.R || c.B > 200 || c.B < 80 {
		t.Errorf("widget over black = %+v, want translucent blue tint", c)
	}
	if c := pixel(img, 80, 10); c.R > 5 {
		t.Errorf("content outside widget = %+v, want black", c)
	}
}

// isWidgetTint 白底上的控件高亮：浅蓝色
func isWidgetTint(c color.NRGBA) bool {
	return c.B == 255 && c.R >= 215 && c.R <= 245 && c.G > c.R && c.G < 255
}
