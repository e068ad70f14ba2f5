// Package imaging 提供签名图像的样式处理：解码、缩放、重新着色与去背景
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// ErrEmptyImage 图像尺寸为零
var ErrEmptyImage = errors.New("image has zero size")

// Decode 解码 PNG/JPEG 数据
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return img, nil
}

// EncodePNG 编码为 PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// AspectRatio 返回图像宽高比
func AspectRatio(data []byte) (float64, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, ErrEmptyImage
	}
	return float64(cfg.Width) / float64(cfg.Height), nil
}

// Normalize 将上传的签名统一为 PNG，宽度超过 maxWidth 时等比缩小
// maxWidth <= 0 表示不缩放
func Normalize(data []byte, maxWidth int) ([]byte, float64, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxWidth > 0 && w > maxWidth {
		nh := h * maxWidth / w
		if nh < 1 {
			nh = 1
		}
		dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
		w, h = maxWidth, nh
	}

	out, err := EncodePNG(img)
	if err != nil {
		return nil, 0, err
	}
	return out, float64(w) / float64(h), nil
}

// ToNRGBA 复制为原点在 (0,0) 的非预乘 RGBA，便于逐像素处理
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Recolor 保留每个像素的 alpha，将颜色替换为 c
func Recolor(data []byte, c color.NRGBA) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	dst := ToNRGBA(img)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i+3] == 0 {
			continue
		}
		pix[i+0] = c.R
		pix[i+1] = c.G
		pix[i+2] = c.B
	}
	return EncodePNG(dst)
}

// RemoveBackground 亮度不低于 threshold 的像素变为透明
// 扫描纸面上的签名通常是深色墨迹加浅色背景
func RemoveBackground(data []byte, threshold uint8) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	dst := ToNRGBA(img)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if luminance(pix[i], pix[i+1], pix[i+2]) >= threshold {
			pix[i+3] = 0
		}
	}
	return EncodePNG(dst)
}

// luminance ITU-R BT.601 亮度
func luminance(r, g, b uint8) uint8 {
	y := (299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000
	return uint8(y)
}
