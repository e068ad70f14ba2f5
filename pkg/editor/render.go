package editor

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/novvoo/go-pdfsign/pkg/flatten"
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/novvoo/go-pdfsign/pkg/pdfsource"
)

// supersedeRender 取消进行中的页面渲染
func (e *Editor) supersedeRender() {
	if e.cancelRender != nil {
		e.cancelRender()
		e.cancelRender = nil
	}
}

func (e *Editor) rasterizerLocked() pdfsource.Rasterizer {
	if e.rasterizer != nil {
		return e.rasterizer
	}
	return e.doc
}

// RenderPage 按当前页与缩放渲染页面
// 新的渲染会先取消上一次；被取消的渲染返回 (nil, nil)，调用方直接丢弃即可
func (e *Editor) RenderPage(ctx context.Context) (image.Image, error) {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return nil, ErrNoDocument
	}
	e.supersedeRender()
	rctx, cancel := context.WithCancel(ctx)
	e.cancelRender = cancel
	e.renderSeq++
	seq := e.renderSeq
	page, zoom, r := e.page, e.zoom, e.rasterizerLocked()
	e.mu.Unlock()

	img, err := r.RenderPage(rctx, page, zoom)

	e.mu.Lock()
	if e.renderSeq == seq {
		e.cancelRender = nil
	}
	e.mu.Unlock()
	cancel()

	if errors.Is(err, context.Canceled) {
		logging.Debug("render of page %d superseded", page)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return img, nil
}

// ExportDocument 把全部签名与笔迹合成进源 PDF
// 导出基于调用时刻的快照，不影响编辑状态
func (e *Editor) ExportDocument(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return nil, ErrNoDocument
	}
	pdf, snap := e.pdf, e.live.Clone()
	e.mu.Unlock()

	out, err := flatten.DocumentExporter{}.Export(ctx, pdf, snap)
	if err != nil {
		logging.Error("document export failed: %v", err)
		return nil, err
	}
	return out, nil
}

// ExportPageAsImage 把某页渲染为 PNG，倍率取 ExportScale
func (e *Editor) ExportPageAsImage(ctx context.Context, page int) ([]byte, error) {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return nil, ErrNoDocument
	}
	if page < 0 || page >= e.doc.PageCount() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	x := flatten.RasterExporter{Source: e.rasterizerLocked(), Scale: e.settings.ExportScale}
	snap := e.live.Clone()
	e.mu.Unlock()

	out, err := x.Export(ctx, page, snap)
	if err != nil {
		logging.Error("page export failed: %v", err)
		return nil, err
	}
	return out, nil
}
