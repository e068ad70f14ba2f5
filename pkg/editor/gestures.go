package editor

import (
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/novvoo/go-pdfsign/pkg/overlay"
)

// beginSession 手势开始前的检查：非手绘模式、无进行中会话、元素位于当前页
func (e *Editor) beginSession(id string) (overlay.Element, error) {
	if e.freeDraw {
		return overlay.Element{}, ErrFreeDraw
	}
	if e.session.State == overlay.StateActive {
		return overlay.Element{}, ErrSessionActive
	}
	i := e.live.Find(id)
	if i < 0 || e.live.Elements[i].PageIndex != e.page {
		return overlay.Element{}, ErrNotFound
	}
	return e.live.Elements[i], nil
}

// PointerDownElement 在元素主体上按下，开始拖动
func (e *Editor) PointerDownElement(id string, x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, err := e.beginSession(id)
	if err != nil {
		return err
	}
	e.session = overlay.BeginDrag(el, overlay.PixelPoint{X: x, Y: y})
	return nil
}

// PointerDownHandle 在缩放手柄上按下，开始缩放
func (e *Editor) PointerDownHandle(id string, h overlay.Handle, x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, err := e.beginSession(id)
	if err != nil {
		return err
	}
	e.session = overlay.BeginResize(el, h, overlay.PixelPoint{X: x, Y: y})
	return nil
}

// PointerDownRotate 在旋转手柄上按下，开始旋转
func (e *Editor) PointerDownRotate(id string, x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, err := e.beginSession(id)
	if err != nil {
		return err
	}
	e.session = overlay.BeginRotate(el, overlay.PixelPoint{X: x, Y: y}, e.viewportLocked())
	return nil
}

// stepEnv 当前页的吸附环境
func (e *Editor) stepEnv() overlay.StepEnv {
	vp := e.viewportLocked()
	env := overlay.StepEnv{
		Viewport:     vp,
		Threshold:    e.settings.SnapThreshold,
		AspectLocked: e.aspectLocked,
		MinWidth:     e.settings.MinWidth,
		MinHeight:    e.settings.MinHeight,
	}
	for _, el := range e.live.PageElements(e.page) {
		if el.ID == e.session.ElementID {
			continue
		}
		env.Siblings = append(env.Siblings, overlay.Footprint(el, vp.Aspect()))
	}
	if e.doc != nil {
		if targets, err := e.doc.FormFieldRects(e.page); err == nil {
			env.Targets = targets
		}
	}
	return env
}

// PointerMove 推进进行中的手势（页面像素坐标），返回是否有会话在处理
// 手绘模式下等同于 ExtendStroke
func (e *Editor) PointerMove(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.freeDraw {
		if e.stroke != nil {
			e.stroke.Points = append(e.stroke.Points, e.normalize(x, y))
			return true
		}
		return false
	}
	if e.session.State != overlay.StateActive {
		return false
	}

	var d overlay.Delta
	e.session, d = overlay.Step(e.session, overlay.PointerEvent{Kind: overlay.EventMove, X: x, Y: y}, e.stepEnv())
	e.apply(d.Element)
	e.guides = d.Guides
	return true
}

// PointerUp 结束手势；净变化时以会话开始前的状态记录一条历史
func (e *Editor) PointerUp() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State != overlay.StateActive {
		return false
	}
	return e.finishSession(overlay.EventUp)
}

// CancelGesture 中止手势并恢复元素，不记录历史
func (e *Editor) CancelGesture() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelSessionLocked()
}

func (e *Editor) cancelSessionLocked() {
	if e.session.State == overlay.StateActive {
		e.finishSession(overlay.EventCancel)
	}
}

func (e *Editor) finishSession(kind overlay.EventKind) bool {
	start := e.session.Start
	s, d := overlay.Step(e.session, overlay.PointerEvent{Kind: kind}, e.stepEnv())
	e.apply(d.Element)
	e.guides = nil
	e.session = overlay.Session{}

	if !d.Changed {
		return false
	}
	// 会话开始前的状态 = 当前状态中该元素换回起始值
	before := e.live.Clone()
	if i := before.Find(start.ID); i >= 0 {
		before.Elements[i] = start
	}
	e.history.Record(before)
	logging.Debug("%s session on %s committed", s.Mode, start.ID)
	return true
}

// apply 把会话计算结果写回实时状态
func (e *Editor) apply(el overlay.Element) {
	if i := e.live.Find(el.ID); i >= 0 {
		e.live.Elements[i] = el
	}
}

// Guides 返回当前应显示的吸附参考线
func (e *Editor) Guides() []overlay.Guide {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]overlay.Guide(nil), e.guides...)
}

// Session 返回当前手势会话
func (e *Editor) Session() overlay.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}
