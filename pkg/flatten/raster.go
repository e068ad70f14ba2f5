package flatten

import (
	"context"
	"fmt"
	"image"

	"github.com/novvoo/go-cairo/pkg/cairo"
	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
	"github.com/novvoo/go-pdfsign/pkg/pdfsource"
)

// DefaultRasterScale 栅格导出的默认倍率
const DefaultRasterScale = 2.0

// RasterExporter 把单页渲染为 PNG 并合成叠加层
type RasterExporter struct {
	Source pdfsource.Rasterizer
	Scale  float64
}

// Export 渲染 pageIndex 页并返回 PNG 数据，snap 不会被修改
func (x RasterExporter) Export(ctx context.Context, pageIndex int, snap overlay.Snapshot) ([]byte, error) {
	if x.Source == nil {
		return nil, fmt.Errorf("no page rasterizer")
	}
	scale := x.Scale
	if scale <= 0 {
		scale = DefaultRasterScale
	}
	snap = snap.Clone()

	page, err := x.Source.RenderPage(ctx, pageIndex, scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageIndex, err)
	}

	surface, canvas, err := imaging.ToSurface(page)
	if err != nil {
		return nil, fmt.Errorf("failed to create page surface: %w", err)
	}
	defer surface.Destroy()

	w := float64(surface.GetWidth())
	h := float64(surface.GetHeight())
	instrs := PlanRasterPage(w, h, scale, snap.PageElements(pageIndex), snap.Drawings[pageIndex])

	cctx := cairo.NewContext(surface)
	defer cctx.Destroy()

	for _, in := range instrs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch v := in.(type) {
		case LineInstruction:
			drawLine(cctx, v)
		case ImageInstruction:
			if err := drawImage(canvas, v); err != nil {
				return nil, err
			}
		}
	}

	out, err := imaging.FromSurface(surface)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(out)
}

func drawLine(cctx cairo.Context, l LineInstruction) {
	cctx.Save()
	cctx.SetSourceRGB(l.Color.R, l.Color.G, l.Color.B)
	cctx.SetLineWidth(l.Thickness)
	cctx.SetLineCap(cairo.LineCapRound)
	cctx.SetLineJoin(cairo.LineJoinRound)
	cctx.MoveTo(l.From.X, l.From.Y)
	cctx.LineTo(l.To.X, l.To.Y)
	cctx.Stroke()
	cctx.Restore()
}

// drawImage 直接合成到画布：cairo 的表面图案不会采样源像素
func drawImage(canvas *image.RGBA, in ImageInstruction) error {
	img, err := imaging.Decode(in.Image)
	if err != nil {
		return fmt.Errorf("%w: element %s: %v", ErrImageEmbed, in.ElementID, err)
	}
	b := img.Bounds()
	m := in.RasterMatrix(float64(b.Dx()), float64(b.Dy()))
	if err := imaging.Composite(canvas, img, cairo.Matrix(m), in.Opacity); err != nil {
		return fmt.Errorf("%w: element %s: %v", ErrImageEmbed, in.ElementID, err)
	}
	return nil
}
