package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/novvoo/go-cairo/pkg/cairo"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrNoCanvas 表面没有可写入的 RGBA 画布
var ErrNoCanvas = errors.New("surface has no RGBA canvas")

// NewSurface 创建 ARGB32 表面，同时返回 cairo 实际绘制的画布
// go-cairo 的光栅化结果只写入 GetGoImage() 的预乘 RGBA 缓冲，GetData() 不会同步
func NewSurface(width, height int) (cairo.ImageSurface, *image.RGBA, error) {
	surface := cairo.NewImageSurface(cairo.FormatARGB32, width, height)
	if st := surface.Status(); st != cairo.StatusSuccess {
		return nil, nil, fmt.Errorf("failed to create %dx%d surface: %v", width, height, st)
	}
	imgSurf, ok := surface.(cairo.ImageSurface)
	if !ok {
		surface.Destroy()
		return nil, nil, fmt.Errorf("failed to create image surface")
	}
	canvas, err := Canvas(imgSurf)
	if err != nil {
		imgSurf.Destroy()
		return nil, nil, err
	}
	return imgSurf, canvas, nil
}

// Canvas 返回表面的 RGBA 画布
func Canvas(s cairo.ImageSurface) (*image.RGBA, error) {
	canvas, ok := s.GetGoImage().(*image.RGBA)
	if !ok || canvas == nil {
		return nil, ErrNoCanvas
	}
	return canvas, nil
}

// ToSurface 将 image.Image 复制到新表面的画布上
func ToSurface(img image.Image) (cairo.ImageSurface, *image.RGBA, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil, ErrEmptyImage
	}
	surface, canvas, err := NewSurface(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, nil, err
	}
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return surface, canvas, nil
}

// FromSurface 将表面画布读回为非预乘的 NRGBA 图像
func FromSurface(s cairo.ImageSurface) (*image.NRGBA, error) {
	canvas, err := Canvas(s)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(canvas), nil
}

// Composite 以双线性采样将 src 按仿射矩阵 m 叠加到 dst
// m 把 src 像素坐标（以左上角为原点）映射到 dst 像素坐标，opacity 乘进 alpha
func Composite(dst draw.Image, src image.Image, m cairo.Matrix, opacity float64) error {
	if src.Bounds().Empty() {
		return ErrEmptyImage
	}
	if opacity <= 0 || m.XX*m.YY-m.XY*m.YX == 0 {
		return nil
	}

	layer := ToNRGBA(src)
	if opacity < 1 {
		for i := 3; i < len(layer.Pix); i += 4 {
			layer.Pix[i] = uint8(float64(layer.Pix[i])*opacity + 0.5)
		}
	}

	s2d := f64.Aff3{m.XX, m.XY, m.X0, m.YX, m.YY, m.Y0}
	draw.BiLinear.Transform(dst, s2d, layer, layer.Bounds(), draw.Over, nil)
	return nil
}
