package flatten

import (
	"fmt"
	"math"
)

// Matrix 2D 仿射变换
//
//	x' = XX*x + XY*y + X0
//	y' = YX*x + YY*y + Y0
type Matrix struct {
	XX, YX float64
	XY, YY float64
	X0, Y0 float64
}

// NewIdentityMatrix 创建单位矩阵
func NewIdentityMatrix() Matrix {
	return Matrix{XX: 1, YY: 1}
}

// NewTranslationMatrix 创建平移矩阵
func NewTranslationMatrix(tx, ty float64) Matrix {
	return Matrix{XX: 1, YY: 1, X0: tx, Y0: ty}
}

// NewScaleMatrix 创建缩放矩阵
func NewScaleMatrix(sx, sy float64) Matrix {
	return Matrix{XX: sx, YY: sy}
}

// NewRotationMatrixDegrees 创建旋转矩阵（度，Y 轴向上时逆时针为正）
func NewRotationMatrixDegrees(degrees float64) Matrix {
	rad := radians(degrees)
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Matrix{XX: cos, YX: sin, XY: -sin, YY: cos}
}

// NewPageTransform 归一化页面坐标（左上角原点，Y 向下）到 PDF 点（左下角原点，Y 向上）
func NewPageTransform(width, height float64) Matrix {
	return Matrix{XX: width, YY: -height, Y0: height}
}

// Multiply 先应用 m 再应用 other
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		XX: other.XX*m.XX + other.XY*m.YX,
		YX: other.YX*m.XX + other.YY*m.YX,
		XY: other.XX*m.XY + other.XY*m.YY,
		YY: other.YX*m.XY + other.YY*m.YY,
		X0: other.XX*m.X0 + other.XY*m.Y0 + other.X0,
		Y0: other.YX*m.X0 + other.YY*m.Y0 + other.Y0,
	}
}

// Transform 变换点
func (m Matrix) Transform(x, y float64) (float64, float64) {
	return m.XX*x + m.XY*y + m.X0, m.YX*x + m.YY*y + m.Y0
}

// TransformDistance 变换向量（忽略平移）
func (m Matrix) TransformDistance(dx, dy float64) (float64, float64) {
	return m.XX*dx + m.XY*dy, m.YX*dx + m.YY*dy
}

// Operands 以 cm 操作数顺序输出：a b c d e f
func (m Matrix) Operands() string {
	return fmt.Sprintf("%s %s %s %s %s %s",
		num(m.XX), num(m.YX), num(m.XY), num(m.YY), num(m.X0), num(m.Y0))
}

// ImageMatrix 文档路径中图像的 cm 矩阵：单位正方形缩放到 W×H，绕 (X,Y) 旋转后平移
func (i ImageInstruction) ImageMatrix() Matrix {
	m := NewScaleMatrix(i.Width, i.Height)
	if i.Rotation != nil {
		m = m.Multiply(NewRotationMatrixDegrees(*i.Rotation))
	}
	return m.Multiply(NewTranslationMatrix(i.X, i.Y))
}

// RasterMatrix 栅格路径中 iw×ih 像素源图到画布的映射：缩放到 W×H，绕中心顺时针旋转
func (i ImageInstruction) RasterMatrix(iw, ih float64) Matrix {
	m := NewScaleMatrix(i.Width/iw, i.Height/ih).Multiply(NewTranslationMatrix(-i.Width/2, -i.Height/2))
	if i.Rotation != nil {
		m = m.Multiply(NewRotationMatrixDegrees(*i.Rotation))
	}
	cx, cy := i.Center()
	return m.Multiply(NewTranslationMatrix(cx, cy))
}

// num 格式化 PDF 数字，去掉多余的零
func num(v float64) string {
	if math.Abs(v) < 5e-5 {
		return "0"
	}
	s := fmt.Sprintf("%.4f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
