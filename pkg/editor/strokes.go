package editor

import (
	"fmt"

	"github.com/novvoo/go-pdfsign/pkg/overlay"
)

// SetFreeDraw 切换手绘模式；开启时中止进行中的变换手势
func (e *Editor) SetFreeDraw(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if on {
		e.cancelSessionLocked()
	} else {
		e.stroke = nil
	}
	e.freeDraw = on
}

// FreeDraw 是否处于手绘模式
func (e *Editor) FreeDraw() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.freeDraw
}

// SetPen 设置后续笔迹的颜色与线宽
func (e *Editor) SetPen(c overlay.RGB, width float64) error {
	if width <= 0 {
		return fmt.Errorf("invalid stroke width: %g", width)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pen = overlay.Stroke{Color: c, Width: width}
	return nil
}

// normalize 页面像素坐标转换为归一化坐标
func (e *Editor) normalize(x, y float64) overlay.Point {
	vp := e.viewportLocked()
	return overlay.Point{
		X: min(max(x/vp.Width, 0), 1),
		Y: min(max(y/vp.Height, 0), 1),
	}
}

// BeginStroke 在当前页按下画笔（页面像素坐标）
func (e *Editor) BeginStroke(x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.freeDraw {
		return ErrNotDrawing
	}
	if e.doc == nil {
		return ErrNoDocument
	}
	e.stroke = &overlay.Stroke{
		Points: []overlay.Point{e.normalize(x, y)},
		Color:  e.pen.Color,
		Width:  e.pen.Width,
	}
	return nil
}

// ExtendStroke 追加笔迹点，没有进行中的笔迹时忽略
func (e *Editor) ExtendStroke(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stroke == nil {
		return
	}
	e.stroke.Points = append(e.stroke.Points, e.normalize(x, y))
}

// EndStroke 抬笔；至少两个点的笔迹追加到当前页并记录历史，返回是否提交
func (e *Editor) EndStroke() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stroke
	e.stroke = nil
	if s == nil || !s.Valid() {
		return false
	}

	before := e.live.Clone()
	e.live.Drawings.Append(e.page, *s)
	return e.commit(before)
}

// Strokes 返回某页已提交的笔迹
func (e *Editor) Strokes(page int) []overlay.Stroke {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live.Drawings.Clone()[page]
}

// ClearPage 清除某页的全部笔迹，签名元素保留
func (e *Editor) ClearPage(page int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.mutable(); err != nil {
		return err
	}
	if e.doc != nil && (page < 0 || page >= e.doc.PageCount()) {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if len(e.live.Drawings[page]) == 0 {
		return nil
	}

	before := e.live.Clone()
	delete(e.live.Drawings, page)
	e.commit(before)
	return nil
}
