// Package editor 签名编辑会话控制器
//
// Editor 持有源文档、叠加层实时状态与撤销历史，把指针事件分派给
// 拖动/缩放/旋转会话，并提供页面渲染与两种导出入口。
// 所有方法通过互斥锁串行化，相当于单一的编辑线程。
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/novvoo/go-pdfsign/pkg/config"
	"github.com/novvoo/go-pdfsign/pkg/history"
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
	"github.com/novvoo/go-pdfsign/pkg/pdfsource"
)

var (
	// ErrNotFound 元素不存在（或不在当前页）
	ErrNotFound = errors.New("element not found")
	// ErrSessionActive 已有手势会话进行中
	ErrSessionActive = errors.New("another transform session is active")
	// ErrFreeDraw 手绘模式下不响应变换手势
	ErrFreeDraw = errors.New("free-draw mode is active")
	// ErrNotDrawing 手绘模式未开启
	ErrNotDrawing = errors.New("free-draw mode is off")
	// ErrNoDocument 尚未打开文档
	ErrNoDocument = errors.New("no document loaded")
	// ErrInvalidPage 页码越界
	ErrInvalidPage = errors.New("invalid page index")
)

// Option 编辑器选项
type Option func(*Editor)

// WithRasterizer 使用外部页面渲染器替代内置的页面预览
func WithRasterizer(r pdfsource.Rasterizer) Option {
	return func(e *Editor) {
		e.rasterizer = r
	}
}

// Editor 编辑会话控制器
type Editor struct {
	mu sync.Mutex

	settings   config.Settings
	placement  overlay.Placement
	rasterizer pdfsource.Rasterizer

	pdf  []byte
	doc  *pdfsource.Document
	page int

	zoom     float64
	viewport overlay.Viewport // 为零时按页面尺寸 × zoom 计算

	freeDraw     bool
	aspectLocked bool
	pen          overlay.Stroke // 颜色与线宽模板

	live    overlay.Snapshot
	history *history.Log

	session overlay.Session
	stroke  *overlay.Stroke
	guides  []overlay.Guide

	cancelRender context.CancelFunc
	renderSeq    uint64
}

// DefaultStrokeWidth 默认笔迹线宽（PDF 点）
const DefaultStrokeWidth = 2.0

// New 创建编辑器
func New(settings config.Settings, opts ...Option) (*Editor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.LogLevel != "" {
		logging.SetLogLevel(logging.ParseLevel(settings.LogLevel))
	}

	e := &Editor{
		settings:     settings,
		placement:    overlay.Placement{X: settings.DefaultX, Y: settings.DefaultY, Width: settings.DefaultWidth},
		zoom:         1,
		aspectLocked: settings.AspectLocked,
		pen:          overlay.Stroke{Color: overlay.Black, Width: DefaultStrokeWidth},
		live:         overlay.NewSnapshot(),
		history:      history.New(settings.HistoryLimit),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Open 加载源文档；失败时编辑器状态保持不变
// 成功后叠加层与历史全部重置，回到第一页
func (e *Editor) Open(ctx context.Context, pdf []byte) error {
	doc, err := pdfsource.Load(ctx, pdf)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.supersedeRender()
	e.pdf = pdf
	e.doc = doc
	e.page = 0
	e.viewport = overlay.Viewport{}
	e.resetLocked()
	logging.Info("opened document with %d pages", doc.PageCount())
	return nil
}

// PageCount 返回页数，未打开文档时为 0
func (e *Editor) PageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return 0
	}
	return e.doc.PageCount()
}

// Page 当前页（从 0 开始）
func (e *Editor) Page() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.page
}

// SetPage 切换当前页，会中止进行中的渲染与手势
func (e *Editor) SetPage(page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		return ErrNoDocument
	}
	if page < 0 || page >= e.doc.PageCount() {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if page == e.page {
		return nil
	}
	e.supersedeRender()
	e.cancelSessionLocked()
	e.page = page
	e.viewport = overlay.Viewport{}
	return nil
}

// SetZoom 设置渲染倍率，会中止进行中的渲染
func (e *Editor) SetZoom(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("invalid zoom: %g", scale)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.supersedeRender()
	e.zoom = scale
	e.viewport = overlay.Viewport{}
	return nil
}

// Zoom 当前渲染倍率
func (e *Editor) Zoom() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoom
}

// SetViewport 指定页面在屏幕上的实际像素尺寸
// 指针坐标按该尺寸换算为百分比；切换页面或缩放后恢复为默认值
func (e *Editor) SetViewport(vp overlay.Viewport) error {
	if !vp.Valid() {
		return fmt.Errorf("invalid viewport: %+v", vp)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = vp
	return nil
}

// Viewport 当前页的渲染尺寸
func (e *Editor) Viewport() overlay.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewportLocked()
}

func (e *Editor) viewportLocked() overlay.Viewport {
	if e.viewport.Valid() {
		return e.viewport
	}
	if e.doc == nil {
		return overlay.Viewport{Width: 100 * e.zoom, Height: 100 * e.zoom}
	}
	info, err := e.doc.Page(e.page)
	if err != nil {
		return overlay.Viewport{Width: 100 * e.zoom, Height: 100 * e.zoom}
	}
	return info.Viewport(e.zoom)
}

// SetAspectLocked 缩放时是否锁定宽高比
func (e *Editor) SetAspectLocked(locked bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aspectLocked = locked
}

// Snapshot 返回实时状态的深拷贝
func (e *Editor) Snapshot() overlay.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.Clone()
}

// Undo 撤销一步，手势进行中或无历史时返回 false
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == overlay.StateActive {
		return false
	}
	prev, ok := e.history.Undo(e.live)
	if !ok {
		return false
	}
	e.live = prev
	return true
}

// Redo 重做一步
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == overlay.StateActive {
		return false
	}
	next, ok := e.history.Redo(e.live)
	if !ok {
		return false
	}
	e.live = next
	return true
}

// CanUndo 是否可以撤销
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanUndo()
}

// CanRedo 是否可以重做
func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.CanRedo()
}

// Reset 清空所有签名、笔迹与历史（文档重置），不可撤销
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Editor) resetLocked() {
	e.session = overlay.Session{}
	e.stroke = nil
	e.guides = nil
	e.live = overlay.NewSnapshot()
	e.history.Reset()
}

// commit 在实时状态确实发生变化时记录一条历史
func (e *Editor) commit(before overlay.Snapshot) bool {
	if before.Equal(e.live) {
		return false
	}
	e.history.Record(before)
	return true
}

// mutable 编辑操作的公共前置检查
func (e *Editor) mutable() error {
	if e.session.State == overlay.StateActive {
		return ErrSessionActive
	}
	return nil
}
