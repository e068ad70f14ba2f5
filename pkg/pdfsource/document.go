// Package pdfsource 读取源 PDF：页数、页面尺寸、表单控件位置与页面预览
package pdfsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrPageRange 页码越界
var ErrPageRange = errors.New("page index out of range")

// PageInfo 页面信息（PDF 点）
type PageInfo struct {
	Width   float64
	Height  float64
	OffsetX float64 // MediaBox 左下角
	OffsetY float64
}

// Viewport 按缩放倍率计算渲染尺寸（像素）
func (p PageInfo) Viewport(scale float64) overlay.Viewport {
	if scale <= 0 {
		scale = 1
	}
	return overlay.Viewport{Width: p.Width * scale, Height: p.Height * scale}
}

// ToPercent 将 PDF 矩形 [llx lly urx ury] 转换为页面百分比矩形（左上角原点）
func (p PageInfo) ToPercent(r [4]float64) overlay.Rect {
	x1, x2 := min(r[0], r[2]), max(r[0], r[2])
	y1, y2 := min(r[1], r[3]), max(r[1], r[3])
	top := p.OffsetY + p.Height
	return overlay.Rect{
		X:      (x1 - p.OffsetX) / p.Width * 100,
		Y:      (top - y2) / p.Height * 100,
		Width:  (x2 - x1) / p.Width * 100,
		Height: (y2 - y1) / p.Height * 100,
	}
}

// Document 已加载的源文档
type Document struct {
	mu      sync.Mutex // 保护 ctx：渲染时解引用对象会修改交叉引用表
	ctx     *model.Context
	pages   []PageInfo
	targets [][]overlay.Rect // 每页的表单控件吸附目标
}

// 默认 Letter 尺寸
var letter = PageInfo{Width: 612, Height: 792}

// ReadContext 以宽松模式解析 PDF 并确定页数
// 不做完整校验：缺少 /DA 的表单控件等常见瑕疵不影响读取页面与控件矩形
func ReadContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	return pctx, nil
}

// Load 解析 PDF 数据，读取全部页面尺寸与表单控件
func Load(ctx context.Context, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pctx, err := ReadContext(data)
	if err != nil {
		return nil, err
	}
	if pctx.PageCount < 1 {
		return nil, fmt.Errorf("document has no pages")
	}

	doc := &Document{
		ctx:     pctx,
		pages:   make([]PageInfo, pctx.PageCount),
		targets: make([][]overlay.Rect, pctx.PageCount),
	}
	for i := range doc.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageDict, _, inh, err := pctx.PageDict(i+1, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get page dict %d: %w", i+1, err)
		}
		info := pageInfo(inh)
		doc.pages[i] = info

		widgets, err := widgetRects(pctx, pageDict)
		if err != nil {
			logging.Warn("page %d: %v", i+1, err)
			continue
		}
		for _, r := range widgets {
			doc.targets[i] = append(doc.targets[i], info.ToPercent(r))
		}
	}

	logging.Debug("loaded document: %d pages", pctx.PageCount)
	return doc, nil
}

func pageInfo(inh *model.InheritedPageAttrs) PageInfo {
	if inh == nil || inh.MediaBox == nil {
		return letter
	}
	mb := inh.MediaBox
	if mb.Width() <= 0 || mb.Height() <= 0 {
		return letter
	}
	return PageInfo{
		Width:   mb.Width(),
		Height:  mb.Height(),
		OffsetX: mb.LL.X,
		OffsetY: mb.LL.Y,
	}
}

// PageCount 页数
func (d *Document) PageCount() int {
	return len(d.pages)
}

// Page 返回页面信息，index 从 0 开始
func (d *Document) Page(index int) (PageInfo, error) {
	if index < 0 || index >= len(d.pages) {
		return PageInfo{}, fmt.Errorf("%w: %d", ErrPageRange, index)
	}
	return d.pages[index], nil
}

// FormFieldRects 返回页面上表单控件的百分比矩形，作为吸附目标
func (d *Document) FormFieldRects(index int) ([]overlay.Rect, error) {
	if index < 0 || index >= len(d.targets) {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, index)
	}
	out := make([]overlay.Rect, len(d.targets[index]))
	copy(out, d.targets[index])
	return out, nil
}

// numbers 读取数字数组
func numbers(arr types.Array) ([]float64, bool) {
	out := make([]float64, 0, len(arr))
	for _, o := range arr {
		switch v := o.(type) {
		case types.Float:
			out = append(out, float64(v))
		case types.Integer:
			out = append(out, float64(v))
		default:
			return nil, false
		}
	}
	return out, true
}
