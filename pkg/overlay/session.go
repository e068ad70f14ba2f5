package overlay

import (
	"fmt"
	"math"
	"strings"
)

// Mode 交互变换模式
type Mode int

const (
	ModeDrag Mode = iota
	ModeResize
	ModeRotate
)

func (m Mode) String() string {
	switch m {
	case ModeDrag:
		return "drag"
	case ModeResize:
		return "resize"
	case ModeRotate:
		return "rotate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State 会话状态：Idle → Active → Committing → Idle
type State int

const (
	StateIdle State = iota
	StateActive
	StateCommitting
)

// Handle 缩放手柄，以罗盘方向标识
type Handle string

const (
	HandleN  Handle = "n"
	HandleS  Handle = "s"
	HandleE  Handle = "e"
	HandleW  Handle = "w"
	HandleNE Handle = "ne"
	HandleNW Handle = "nw"
	HandleSE Handle = "se"
	HandleSW Handle = "sw"
)

// ParseHandle 解析手柄代码
func ParseHandle(s string) (Handle, error) {
	switch h := Handle(strings.ToLower(s)); h {
	case HandleN, HandleS, HandleE, HandleW, HandleNE, HandleNW, HandleSE, HandleSW:
		return h, nil
	}
	return "", fmt.Errorf("unknown resize handle: %q", s)
}

// Has 判断手柄是否包含某个方向
func (h Handle) Has(dir byte) bool {
	return strings.IndexByte(string(h), dir) >= 0
}

// PixelPoint 页面局部像素坐标（相对渲染页面左上角）
type PixelPoint struct {
	X, Y float64
}

// EventKind 指针事件类型
type EventKind int

const (
	EventMove EventKind = iota
	EventUp
	EventCancel
)

// PointerEvent 会话收到的指针事件
type PointerEvent struct {
	Kind EventKind
	X, Y float64
}

// Session 一次手势的瞬态变换状态，只存在于按下到抬起之间
type Session struct {
	Mode         Mode
	State        State
	ElementID    string
	Handle       Handle     // 仅 resize
	StartPointer PixelPoint // 按下时的指针位置
	Start        Element    // 会话开始时的元素快照
	Current      Element    // 当前计算结果
	Center       PixelPoint // 仅 rotate：元素中心
	StartAngle   float64    // 仅 rotate：起始角度（度）
}

// StepEnv 计算一步所需的外部输入
type StepEnv struct {
	Viewport     Viewport
	Siblings     []Rect // 同页其他元素
	Targets      []Rect // 表单域吸附目标
	Threshold    float64
	AspectLocked bool
	MinWidth     float64
	MinHeight    float64
}

// Delta 一步计算的输出
type Delta struct {
	Element Element
	Guides  []Guide
	Changed bool // 仅在 Done 时有意义：相对会话开始是否有净变化
	Done    bool
}

// MinFreeHeight 自由缩放时高度下限（百分比）
const MinFreeHeight = 0.5

// BeginDrag 在元素主体上按下时开始拖动会话
func BeginDrag(e Element, pointer PixelPoint) Session {
	return Session{
		Mode:         ModeDrag,
		State:        StateActive,
		ElementID:    e.ID,
		StartPointer: pointer,
		Start:        e,
		Current:      e,
	}
}

// BeginResize 在缩放手柄上按下时开始缩放会话
func BeginResize(e Element, h Handle, pointer PixelPoint) Session {
	s := BeginDrag(e, pointer)
	s.Mode = ModeResize
	s.Handle = h
	return s
}

// BeginRotate 在旋转手柄上按下时开始旋转会话，记录元素中心与起始角度
func BeginRotate(e Element, pointer PixelPoint, vp Viewport) Session {
	s := BeginDrag(e, pointer)
	s.Mode = ModeRotate
	fp := Footprint(e, vp.Aspect())
	s.Center = PixelPoint{
		X: (fp.X + fp.Width/2) / 100 * vp.Width,
		Y: (fp.Y + fp.Height/2) / 100 * vp.Height,
	}
	s.StartAngle = angleDegrees(s.Center, pointer)
	return s
}

// Step 纯函数：根据事件推进会话，返回新会话与模型变化
func Step(s Session, ev PointerEvent, env StepEnv) (Session, Delta) {
	if s.State != StateActive {
		return s, Delta{Element: s.Current}
	}
	env = env.withDefaults()

	switch ev.Kind {
	case EventUp:
		s.State = StateCommitting
		return s, Delta{Element: s.Current, Changed: !s.Current.Equal(s.Start), Done: true}
	case EventCancel:
		s.State = StateCommitting
		s.Current = s.Start
		return s, Delta{Element: s.Start, Done: true}
	}

	p := PixelPoint{X: ev.X, Y: ev.Y}
	var guides []Guide
	switch s.Mode {
	case ModeDrag:
		s.Current, guides = stepDrag(s, p, env)
	case ModeResize:
		s.Current, guides = stepResize(s, p, env)
	case ModeRotate:
		s.Current = stepRotate(s, p)
	}
	return s, Delta{Element: s.Current, Guides: guides}
}

func (env StepEnv) withDefaults() StepEnv {
	if !env.Viewport.Valid() {
		env.Viewport = Viewport{Width: 100, Height: 100}
	}
	if env.MinWidth <= 0 {
		env.MinWidth = MinElementWidth
	}
	if env.MinHeight <= 0 {
		env.MinHeight = MinFreeHeight
	}
	return env
}

// percentDelta 将像素位移换算为页面百分比
func percentDelta(s Session, p PixelPoint, vp Viewport) (float64, float64) {
	dx := (p.X - s.StartPointer.X) / vp.Width * 100
	dy := (p.Y - s.StartPointer.Y) / vp.Height * 100
	return dx, dy
}

func stepDrag(s Session, p PixelPoint, env StepEnv) (Element, []Guide) {
	aspect := env.Viewport.Aspect()
	dx, dy := percentDelta(s, p, env.Viewport)

	e := s.Start
	e.X += dx
	e.Y += dy
	e = ClampToPage(e, aspect)

	snapped, guides := Snap(Footprint(e, aspect), env.Siblings, env.Targets, env.Threshold)
	e.X, e.Y = snapped.X, snapped.Y
	return ClampToPage(e, aspect), guides
}

func stepResize(s Session, p PixelPoint, env StepEnv) (Element, []Guide) {
	xs, ys := snapCandidates(env.Siblings, env.Targets)
	if env.AspectLocked {
		return resizeLocked(s, p, env, xs)
	}
	return resizeFree(s, p, env, xs, ys)
}

// resizeLocked 锁定宽高比：只有含 e/w 的手柄直接改变宽度，n 保持底边不动
// 吸附只作用于移动的竖直边，高度随宽度推导
func resizeLocked(s Session, p PixelPoint, env StepEnv, xs []float64) (Element, []Guide) {
	aspect := env.Viewport.Aspect()
	dx, _ := percentDelta(s, p, env.Viewport)
	start := s.Start
	startH := DerivedHeightPercent(start, aspect)
	h := s.Handle

	w := start.Width
	maxW := 100 - start.X
	if h.Has('e') {
		w = start.Width + dx
	}
	if h.Has('w') {
		w = start.Width - dx
		maxW = start.X + start.Width
	}

	maxH := 100 - start.Y
	if h.Has('n') {
		maxH = start.Y + startH
	}
	if start.AspectRatio > 0 && aspect > 0 {
		maxW = math.Min(maxW, maxH*start.AspectRatio/aspect)
	}
	w = clamp(w, env.MinWidth, maxW)

	var guides []Guide
	switch {
	case h.Has('e'):
		w, guides = snapExtent(start.X, w, 1, xs, env.Threshold, env.MinWidth, maxW, Vertical)
	case h.Has('w'):
		w, guides = snapExtent(start.X+start.Width, w, -1, xs, env.Threshold, env.MinWidth, maxW, Vertical)
	}

	e := start
	e.Width = w
	if h.Has('w') {
		e.X = start.X + start.Width - w
	}
	if h.Has('n') {
		e.Y = start.Y + startH - DerivedHeightPercent(e, aspect)
	}
	return ClampToPage(e, aspect), guides
}

// resizeFree 自由缩放：宽高独立调整，锚定对边，并按像素尺寸重新计算宽高比
func resizeFree(s Session, p PixelPoint, env StepEnv, xs, ys []float64) (Element, []Guide) {
	vp := env.Viewport
	aspect := vp.Aspect()
	dx, dy := percentDelta(s, p, vp)
	start := s.Start
	startH := DerivedHeightPercent(start, aspect)
	h := s.Handle

	w, ht := start.Width, startH
	maxW, maxH := 100-start.X, 100-start.Y
	if h.Has('e') {
		w = start.Width + dx
	}
	if h.Has('w') {
		w = start.Width - dx
		maxW = start.X + start.Width
	}
	if h.Has('s') {
		ht = startH + dy
	}
	if h.Has('n') {
		ht = startH - dy
		maxH = start.Y + startH
	}
	w = clamp(w, env.MinWidth, maxW)
	ht = clamp(ht, env.MinHeight, maxH)

	var guides, g []Guide
	switch {
	case h.Has('e'):
		w, g = snapExtent(start.X, w, 1, xs, env.Threshold, env.MinWidth, maxW, Vertical)
	case h.Has('w'):
		w, g = snapExtent(start.X+start.Width, w, -1, xs, env.Threshold, env.MinWidth, maxW, Vertical)
	}
	guides = append(guides, g...)
	g = nil
	switch {
	case h.Has('s'):
		ht, g = snapExtent(start.Y, ht, 1, ys, env.Threshold, env.MinHeight, maxH, Horizontal)
	case h.Has('n'):
		ht, g = snapExtent(start.Y+startH, ht, -1, ys, env.Threshold, env.MinHeight, maxH, Horizontal)
	}
	guides = append(guides, g...)

	e := start
	e.Width = w
	if h.Has('w') {
		e.X = start.X + start.Width - w
	}
	if h.Has('n') {
		e.Y = start.Y + startH - ht
	}
	e.AspectRatio = (w / 100 * vp.Width) / (ht / 100 * vp.Height)
	return ClampToPage(e, aspect), guides
}

func stepRotate(s Session, p PixelPoint) Element {
	e := s.Start
	e.Rotation = s.Start.Rotation + (angleDegrees(s.Center, p) - s.StartAngle)
	return e
}

func angleDegrees(center, p PixelPoint) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X) * 180 / math.Pi
}
