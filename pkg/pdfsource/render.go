package pdfsource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/novvoo/go-cairo/pkg/cairo"
	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
)

// Rasterizer 把源页面渲染为位图，实现方需要响应 ctx 取消
type Rasterizer interface {
	RenderPage(ctx context.Context, index int, scale float64) (image.Image, error)
}

// RenderPage 渲染页面：白色底色、页面内容流与表单控件高亮
// 内容流无法解释时退回为只含底色与控件的预览，编辑器仍可据此定位签名
func (d *Document) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	info, err := d.Page(index)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vp := info.Viewport(scale)
	width := int(math.Ceil(vp.Width))
	height := int(math.Ceil(vp.Height))

	surface, canvas, err := imaging.NewSurface(width, height)
	if err != nil {
		return nil, err
	}
	defer surface.Destroy()
	fillWhite(canvas)

	if err := d.paintContent(ctx, index, info, scale, surface, canvas); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logging.Warn("page %d: content not rendered, using preview: %v", index+1, err)
		fillWhite(canvas)
	}

	if err := d.paintWidgets(ctx, index, vp.Width, vp.Height, surface); err != nil {
		return nil, err
	}
	out, err := imaging.FromSurface(surface)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func fillWhite(canvas *image.RGBA) {
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
}

// paintContent 解释页面内容流；用户空间经 y 轴翻转映射到像素坐标
func (d *Document) paintContent(ctx context.Context, index int, info PageInfo, scale float64, surface cairo.ImageSurface, canvas *image.RGBA) error {
	// pdfcpu 解引用时会写回对象状态
	d.mu.Lock()
	defer d.mu.Unlock()

	xt := d.ctx.XRefTable
	pageDict, _, inh, err := xt.PageDict(index+1, false)
	if err != nil {
		return fmt.Errorf("failed to get page dict %d: %w", index+1, err)
	}
	if pageDict == nil {
		return fmt.Errorf("page %d not found", index+1)
	}

	var res types.Dict
	if inh != nil {
		res = inh.Resources
	}
	if own, err := xt.DereferenceDict(pageDict["Resources"]); err == nil && own != nil {
		res = own
	}

	streams, err := contentStreams(xt, pageDict["Contents"])
	if err != nil {
		return err
	}

	cctx := cairo.NewContext(surface)
	defer cctx.Destroy()
	cctx.Scale(scale, scale)
	cctx.Translate(-info.OffsetX, info.OffsetY+info.Height)
	cctx.Scale(1, -1)

	p := newPainter(ctx, xt, cctx, canvas)
	for _, data := range streams {
		if err := p.run(res, data); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// paintWidgets 在页面内容之上以半透明底色与边框标出表单控件
func (d *Document) paintWidgets(ctx context.Context, index int, width, height float64, surface cairo.ImageSurface) error {
	cctx := cairo.NewContext(surface)
	defer cctx.Destroy()

	cctx.SetLineWidth(1)
	for _, r := range d.targets[index] {
		if err := ctx.Err(); err != nil {
			return err
		}
		x := r.X / 100 * width
		y := r.Y / 100 * height
		w := r.Width / 100 * width
		h := r.Height / 100 * height

		cctx.SetSourceRGBA(0.85, 0.9, 1, 0.6)
		cctx.Rectangle(x, y, w, h)
		cctx.Fill()
		cctx.SetSourceRGB(0.45, 0.55, 0.8)
		cctx.Rectangle(x+0.5, y+0.5, w-1, h-1)
		cctx.Stroke()
	}
	if st := cctx.Status(); st != cairo.StatusSuccess {
		return fmt.Errorf("cairo error: %v", st)
	}
	return ctx.Err()
}
