package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/novvoo/go-pdfsign/internal/testpdf"
	"github.com/novvoo/go-pdfsign/pkg/config"
	"github.com/novvoo/go-pdfsign/pkg/flatten"
	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
)

// blockingRasterizer 第一次渲染会阻塞直到被取消
type blockingRasterizer struct {
	started chan struct{}
	calls   int
}

func (b *blockingRasterizer) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	b.calls++
	if b.calls == 1 {
		close(b.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return image.NewNRGBA(image.Rect(0, 0, int(10*scale), int(10*scale))), nil
}

func TestRenderSupersedesInFlight(t *testing.T) {
	r := &blockingRasterizer{started: make(chan struct{})}
	ed, err := New(config.Default(), WithRasterizer(r))
	if err != nil {
		t.Fatal(err)
	}
	if err := ed.Open(context.Background(), testpdf.Build(testPage())); err != nil {
		t.Fatal(err)
	}

	type result struct {
		img image.Image
		err error
	}
	first := make(chan result, 1)
	go func() {
		img, err := ed.RenderPage(context.Background())
		first <- result{img, err}
	}()
	<-r.started

	img, err := ed.RenderPage(context.Background())
	if err != nil || img == nil {
		t.Fatalf("second render = (%v, %v), want an image", img, err)
	}

	res := <-first
	if res.err != nil {
		t.Errorf("superseded render should swallow cancellation, got %v", res.err)
	}
	if res.img != nil {
		t.Error("superseded render should not return an image")
	}
}

func TestRenderPageDefaultPreview(t *testing.T) {
	page := testpdf.Page{
		Width: 100, Height: 80,
		Content: "0 0 1 rg 0 0 20 20 re f",
		Widgets: []testpdf.Widget{{Name: "sig", Rect: [4]float64{50, 50, 90, 70}}},
	}
	ed := newTestEditor(t, page)
	ed.SetZoom(2)
	img, err := ed.RenderPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 160 {
		t.Errorf("preview size = %v, want 200x160", img.Bounds().Size())
	}

	at := func(x, y int) color.NRGBA {
		return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	}
	if c := at(60, 100); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("background = %+v, want opaque white", c)
	}
	// 左下角 20x20 的蓝色矩形，放大后占据 x 0..40、y 120..160
	if c := at(20, 140); c.B < 250 || c.R > 5 || c.G > 5 || c.A != 255 {
		t.Errorf("page content = %+v, want blue", c)
	}
	// 控件 x 100..180、y 20..60，浅蓝高亮
	if c := at(140, 40); c.B != 255 || c.R < 215 || c.R > 245 || c.G <= c.R {
		t.Errorf("widget = %+v, want light blue highlight", c)
	}
}

func TestRenderWithoutDocument(t *testing.T) {
	ed, _ := New(config.Default())
	if _, err := ed.RenderPage(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("err = %v, want ErrNoDocument", err)
	}
	if _, err := ed.ExportDocument(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("err = %v, want ErrNoDocument", err)
	}
}

func TestExportDocumentLeavesStateUntouched(t *testing.T) {
	ed := newTestEditor(t, testpdf.Page{Width: 200, Height: 100})
	addSignature(t, ed)
	ed.SetFreeDraw(true)
	ed.BeginStroke(0, 0)
	ed.ExtendStroke(100, 50)
	ed.EndStroke()
	before := ed.Snapshot()
	past, future := ed.history.Len()

	out, err := ed.ExportDocument(context.Background())
	if err != nil {
		t.Fatalf("ExportDocument failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
	if !ed.Snapshot().Equal(before) {
		t.Error("export changed the overlay")
	}
	if p, f := ed.history.Len(); p != past || f != future {
		t.Error("export changed the history")
	}

	// 导出的文档可以重新打开
	ed2 := newTestEditor(t)
	if err := ed2.Open(context.Background(), out); err != nil {
		t.Errorf("exported PDF cannot be reopened: %v", err)
	}
}

func TestExportDocumentImageFailure(t *testing.T) {
	ed := newTestEditor(t)
	el := addSignature(t, ed)
	// 直接破坏图像数据模拟解码失败
	ed.mu.Lock()
	ed.live.Elements[ed.live.Find(el.ID)].Image = []byte("broken")
	ed.mu.Unlock()

	if _, err := ed.ExportDocument(context.Background()); !errors.Is(err, flatten.ErrImageEmbed) {
		t.Errorf("err = %v, want ErrImageEmbed", err)
	}
	if _, err := ed.Element(el.ID); err != nil {
		t.Error("a failed export must not lose editing state")
	}
}

func TestExportPageAsImage(t *testing.T) {
	ed := newTestEditor(t, testpdf.Page{Width: 100, Height: 50})
	addSignature(t, ed)

	out, err := ed.ExportPageAsImage(context.Background(), 0)
	if err != nil {
		t.Fatalf("ExportPageAsImage failed: %v", err)
	}
	img, err := imaging.Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("size = %v, want 200x100 at the default export scale", img.Bounds().Size())
	}
	if c := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA); c != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("page background = %+v, want opaque white", c)
	}
	if _, err := ed.ExportPageAsImage(context.Background(), 3); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("err = %v, want ErrInvalidPage", err)
	}
}

func TestElementsFollowViewportAspect(t *testing.T) {
	ed := newTestEditor(t, testpdf.Page{Width: 100, Height: 50})
	el := addSignature(t, ed)
	// 页面宽高比 2，元素宽 20%、宽高比 2，高度为 20%
	if h := overlay.DerivedHeightPercent(el, ed.Viewport().Aspect()); !near(h, 20) {
		t.Errorf("derived height = %v, want 20", h)
	}
}
