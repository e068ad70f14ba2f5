package overlay

import (
	"bytes"
	"math"

	"github.com/google/uuid"
)

// Element 表示放置在某一页上的签名图像
// X、Y、Width 均为页面渲染尺寸的百分比（0-100），高度由宽高比推导
type Element struct {
	ID          string  // 唯一标识
	Image       []byte  // PNG 数据，视为不可变，编辑时整体替换
	PageIndex   int     // 所属页（从 0 开始）
	X           float64 // 左上角 X（页面宽度百分比）
	Y           float64 // 左上角 Y（页面高度百分比）
	Width       float64 // 宽度（页面宽度百分比）
	AspectRatio float64 // 源图像宽/高
	Rotation    float64 // 角度，顺时针为正，累计值不做回绕
	Opacity     float64 // 不透明度 [0,1]
}

// Viewport 页面在屏幕上的渲染尺寸（像素）
type Viewport struct {
	Width  float64
	Height float64
}

// Aspect 返回视口宽高比
func (v Viewport) Aspect() float64 {
	if v.Height <= 0 {
		return 1
	}
	return v.Width / v.Height
}

// Valid 判断视口尺寸是否可用
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Rect 百分比坐标下的矩形
type Rect struct {
	X, Y, Width, Height float64
}

// Right 返回右边缘
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom 返回下边缘
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Placement 新元素的默认摆放参数
type Placement struct {
	X, Y, Width float64
}

// DefaultPlacement 默认宽度 20%，位于页面中部偏左上
var DefaultPlacement = Placement{X: 40, Y: 40, Width: 20}

// NewID 生成元素 ID
func NewID() string {
	return uuid.NewString()
}

// Place 使用默认参数创建元素
func Place(image []byte, pageIndex int, aspectRatio float64) Element {
	return DefaultPlacement.Place(image, pageIndex, aspectRatio)
}

// Place 创建一个处于默认位置的新元素
func (p Placement) Place(image []byte, pageIndex int, aspectRatio float64) Element {
	if aspectRatio <= 0 || math.IsNaN(aspectRatio) || math.IsInf(aspectRatio, 0) {
		aspectRatio = 1
	}
	return Element{
		ID:          NewID(),
		Image:       image,
		PageIndex:   pageIndex,
		X:           p.X,
		Y:           p.Y,
		Width:       p.Width,
		AspectRatio: aspectRatio,
		Rotation:    0,
		Opacity:     1,
	}
}

// DerivedHeightPercent 由宽度百分比和宽高比推导高度百分比
// 拖动、缩放与导出都通过它计算同一元素的占位
func DerivedHeightPercent(e Element, viewportAspect float64) float64 {
	if e.AspectRatio <= 0 {
		return e.Width * viewportAspect
	}
	return e.Width * viewportAspect / e.AspectRatio
}

// Footprint 返回元素未旋转时的占位矩形
func Footprint(e Element, viewportAspect float64) Rect {
	return Rect{X: e.X, Y: e.Y, Width: e.Width, Height: DerivedHeightPercent(e, viewportAspect)}
}

// MinElementWidth 元素宽度下限（百分比）
const MinElementWidth = 1.0

// ClampToPage 重新施加位置不变量：元素不能超出页面
func ClampToPage(e Element, viewportAspect float64) Element {
	e.Width = clamp(e.Width, MinElementWidth, 100)
	if e.AspectRatio <= 0 || math.IsNaN(e.AspectRatio) {
		e.AspectRatio = 1
	}
	e.Opacity = clamp(e.Opacity, 0, 1)

	h := DerivedHeightPercent(e, viewportAspect)
	e.X = clamp(e.X, 0, 100-e.Width)
	e.Y = clamp(e.Y, 0, math.Max(0, 100-h))
	return e
}

// DuplicateOffset 复制时相对原元素的偏移与位置上限
const (
	DuplicateOffset = 2.0
	DuplicateMax    = 90.0
)

// Duplicate 复制元素：新 ID，位置偏移 2 个百分点且不超过 90
func Duplicate(e Element) Element {
	return DuplicateWith(e, DuplicateOffset, DuplicateMax)
}

// DuplicateWith 使用自定义偏移复制元素
func DuplicateWith(e Element, offset, limit float64) Element {
	c := e
	c.ID = NewID()
	c.X = math.Min(e.X+offset, limit)
	c.Y = math.Min(e.Y+offset, limit)
	return c
}

// Equal 判断两个元素状态是否相同
func (e Element) Equal(o Element) bool {
	return e.ID == o.ID &&
		e.PageIndex == o.PageIndex &&
		e.X == o.X &&
		e.Y == o.Y &&
		e.Width == o.Width &&
		e.AspectRatio == o.AspectRatio &&
		e.Rotation == o.Rotation &&
		e.Opacity == o.Opacity &&
		bytes.Equal(e.Image, o.Image)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
