// Package flatten 把叠加层（签名图像与手写笔迹）合成到页面上
// 文档导出写回 PDF，栅格导出生成单页 PNG，两条路径共用同一套几何规划
package flatten

import (
	"errors"
	"math"

	"github.com/novvoo/go-pdfsign/pkg/overlay"
)

// ErrImageEmbed 元素图像无法解码或嵌入，整个导出被中止
var ErrImageEmbed = errors.New("failed to embed element image")

// DrawInstruction 绘制指令：LineInstruction 或 ImageInstruction
type DrawInstruction interface {
	isDrawInstruction()
}

// LineInstruction 直线段
type LineInstruction struct {
	From, To  overlay.Point // 目标坐标系中的绝对坐标
	Thickness float64
	Color     overlay.RGB
}

// ImageInstruction 图像绘制
//
// 文档路径：X、Y 为旋转后图像左下角（PDF 点，Y 向上），Rotation 为逆时针角度。
// 栅格路径：X、Y 为未旋转图像的左上角（像素，Y 向下），绕图像中心按顺时针角度旋转。
type ImageInstruction struct {
	ElementID     string
	Image         []byte
	X, Y          float64
	Width, Height float64
	Rotation      *float64 // 角度；为 nil 时不旋转
	Opacity       float64
}

func (LineInstruction) isDrawInstruction()  {}
func (ImageInstruction) isDrawInstruction() {}

// PageSize 页面尺寸（PDF 点）
type PageSize struct {
	Width, Height float64
}

// imageSize 由宽度百分比与宽高比计算图像尺寸
func imageSize(e overlay.Element, pageWidth float64) (float64, float64) {
	w := e.Width / 100 * pageWidth
	ar := e.AspectRatio
	if ar <= 0 {
		ar = 1
	}
	return w, w / ar
}

// PlanDocumentPage 规划一页在 PDF 坐标系中的绘制指令
// 先画笔迹，再按插入顺序画签名
func PlanDocumentPage(size PageSize, elements []overlay.Element, strokes []overlay.Stroke) []DrawInstruction {
	toPDF := NewPageTransform(size.Width, size.Height)
	var out []DrawInstruction

	for _, s := range strokes {
		for i := 1; i < len(s.Points); i++ {
			x1, y1 := toPDF.Transform(s.Points[i-1].X, s.Points[i-1].Y)
			x2, y2 := toPDF.Transform(s.Points[i].X, s.Points[i].Y)
			out = append(out, LineInstruction{
				From:      overlay.Point{X: x1, Y: y1},
				To:        overlay.Point{X: x2, Y: y2},
				Thickness: s.Width,
				Color:     s.Color,
			})
		}
	}

	for _, e := range elements {
		w, h := imageSize(e, size.Width)
		left, top := toPDF.Transform(e.X/100, e.Y/100)

		img := ImageInstruction{
			ElementID: e.ID,
			Image:     e.Image,
			X:         left,
			Y:         top - h,
			Width:     w,
			Height:    h,
			Opacity:   e.Opacity,
		}
		if e.Rotation != 0 {
			// 屏幕顺时针为正，PDF 逆时针为正
			theta := -e.Rotation
			cx, cy := left+w/2, top-h/2
			// 以视觉中心为轴：旋转后的左下角 = 中心 - R(θ)·(w/2, h/2)
			dx, dy := NewRotationMatrixDegrees(theta).TransformDistance(w/2, h/2)
			img.X = cx - dx
			img.Y = cy - dy
			img.Rotation = &theta
		}
		out = append(out, img)
	}
	return out
}

// PlanRasterPage 规划一页在像素坐标系中的绘制指令
// widthPx、heightPx 为按 scale 渲染后的画布尺寸，笔迹线宽乘以 scale
func PlanRasterPage(widthPx, heightPx, scale float64, elements []overlay.Element, strokes []overlay.Stroke) []DrawInstruction {
	var out []DrawInstruction

	for _, s := range strokes {
		for i := 1; i < len(s.Points); i++ {
			a, b := s.Points[i-1], s.Points[i]
			out = append(out, LineInstruction{
				From:      overlay.Point{X: a.X * widthPx, Y: a.Y * heightPx},
				To:        overlay.Point{X: b.X * widthPx, Y: b.Y * heightPx},
				Thickness: s.Width * scale,
				Color:     s.Color,
			})
		}
	}

	for _, e := range elements {
		w, h := imageSize(e, widthPx)
		img := ImageInstruction{
			ElementID: e.ID,
			Image:     e.Image,
			X:         e.X / 100 * widthPx,
			Y:         e.Y / 100 * heightPx,
			Width:     w,
			Height:    h,
			Opacity:   e.Opacity,
		}
		if e.Rotation != 0 {
			r := e.Rotation
			img.Rotation = &r
		}
		out = append(out, img)
	}
	return out
}

// Center 返回栅格路径图像的中心
func (i ImageInstruction) Center() (float64, float64) {
	return i.X + i.Width/2, i.Y + i.Height/2
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
