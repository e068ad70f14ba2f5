package pdfsource

import (
	"errors"
	"fmt"
	"image"

	"github.com/novvoo/go-pdfsign/pkg/imaging"
	"github.com/novvoo/go-pdfsign/pkg/logging"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrUnsupportedImage 预览无法解码的图像格式
var ErrUnsupportedImage = errors.New("unsupported image")

// maxImagePixels 单张图像像素上限
const maxImagePixels = 40 << 20

// colorSpace 图像颜色空间；Indexed 时 base 与 palette 有效
type colorSpace struct {
	n        int
	inverted bool // Separation：色调 1 为满墨
	base     *colorSpace
	palette  []byte
	hival    int
}

// decodeImage 将图像 XObject 解码为 Go 图像
// 支持 1/2/4/8/16 位的灰度、RGB、CMYK、Indexed，DCT 编码，SMask 透明度与模板蒙版
func decodeImage(xt *model.XRefTable, sd types.StreamDict, fill [3]float64) (image.Image, error) {
	w, _ := number(xt, sd.Dict["Width"])
	h, _ := number(xt, sd.Dict["Height"])
	width, height := int(w), int(h)
	if width <= 0 || height <= 0 || width*height > maxImagePixels {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	if mask := sd.BooleanEntry("ImageMask"); mask != nil && *mask {
		if err := sd.Decode(); err != nil {
			return nil, err
		}
		return stencil(sd.Content, width, height, decodeInverted(xt, sd.Dict), fill), nil
	}

	var img image.Image
	switch {
	case sd.HasSoleFilterNamed(filter.DCT):
		decoded, err := imaging.Decode(sd.Raw)
		if err != nil {
			return nil, err
		}
		img = decoded
	case sd.HasSoleFilterNamed(filter.JPX):
		return nil, fmt.Errorf("%w: JPXDecode", ErrUnsupportedImage)
	default:
		if err := sd.Decode(); err != nil {
			return nil, err
		}
		cs, err := parseColorSpace(xt, sd.Dict["ColorSpace"], 0)
		if err != nil {
			return nil, err
		}
		bpc := 8
		if v, ok := number(xt, sd.Dict["BitsPerComponent"]); ok {
			bpc = int(v)
		}
		img, err = rasterSamples(sd.Content, width, height, bpc, cs)
		if err != nil {
			return nil, err
		}
	}

	if smask, ok := sd.Dict["SMask"]; ok {
		masked, err := applySoftMask(xt, img, smask)
		if err != nil {
			logging.Debug("ignoring soft mask: %v", err)
			return img, nil
		}
		img = masked
	}
	return img, nil
}

func parseColorSpace(xt *model.XRefTable, obj types.Object, depth int) (colorSpace, error) {
	if depth > 4 {
		return colorSpace{}, fmt.Errorf("%w: color space nesting", ErrUnsupportedImage)
	}
	obj, err := xt.Dereference(obj)
	if err != nil {
		return colorSpace{}, err
	}
	switch v := obj.(type) {
	case nil:
		return colorSpace{n: 1}, nil
	case types.Name:
		switch string(v) {
		case "DeviceGray", "CalGray", "G":
			return colorSpace{n: 1}, nil
		case "DeviceRGB", "CalRGB", "RGB":
			return colorSpace{n: 3}, nil
		case "DeviceCMYK", "CMYK":
			return colorSpace{n: 4}, nil
		}
		return colorSpace{}, fmt.Errorf("%w: color space %s", ErrUnsupportedImage, v)
	case types.Array:
		if len(v) == 0 {
			break
		}
		family, _ := v[0].(types.Name)
		switch string(family) {
		case "CalGray", "CalRGB", "DeviceGray", "DeviceRGB", "DeviceCMYK":
			return parseColorSpace(xt, family, depth+1)
		case "ICCBased":
			if len(v) < 2 {
				break
			}
			o, err := xt.Dereference(v[1])
			if err != nil {
				return colorSpace{}, err
			}
			if sd, ok := o.(types.StreamDict); ok {
				if n, ok := number(xt, sd.Dict["N"]); ok && (n == 1 || n == 3 || n == 4) {
					return colorSpace{n: int(n)}, nil
				}
			}
		case "Separation":
			return colorSpace{n: 1, inverted: true}, nil
		case "Indexed", "I":
			if len(v) < 4 {
				break
			}
			base, err := parseColorSpace(xt, v[1], depth+1)
			if err != nil {
				return colorSpace{}, err
			}
			hival, _ := number(xt, v[2])
			palette, err := lookupBytes(xt, v[3])
			if err != nil {
				return colorSpace{}, err
			}
			return colorSpace{n: 1, base: &base, palette: palette, hival: int(hival)}, nil
		}
	}
	return colorSpace{}, fmt.Errorf("%w: color space %v", ErrUnsupportedImage, obj)
}

func lookupBytes(xt *model.XRefTable, obj types.Object) ([]byte, error) {
	obj, err := xt.Dereference(obj)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case types.StringLiteral:
		return types.Unescape(string(v))
	case types.HexLiteral:
		return v.Bytes()
	case types.StreamDict:
		if err := v.Decode(); err != nil {
			return nil, err
		}
		return v.Content, nil
	}
	return nil, fmt.Errorf("%w: indexed lookup %T", ErrUnsupportedImage, obj)
}

// sampleReader 按位深读取打包的分量
type sampleReader struct {
	data     []byte
	bpc      int
	rowBytes int
}

func (r sampleReader) at(row, index int) int {
	switch r.bpc {
	case 8:
		i := row*r.rowBytes + index
		if i >= len(r.data) {
			return 0
		}
		return int(r.data[i])
	case 16:
		i := row*r.rowBytes + index*2
		if i >= len(r.data) {
			return 0
		}
		return int(r.data[i])
	}
	bit := index * r.bpc
	i := row*r.rowBytes + bit/8
	if i >= len(r.data) {
		return 0
	}
	shift := 8 - r.bpc - bit%8
	return int(r.data[i]>>uint(shift)) & (1<<uint(r.bpc) - 1)
}

// rasterSamples 将解码后的分量数据转换为 NRGBA；16 位分量取高字节
func rasterSamples(data []byte, width, height, bpc int, cs colorSpace) (*image.NRGBA, error) {
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("%w: %d bits per component", ErrUnsupportedImage, bpc)
	}
	r := sampleReader{data: data, bpc: bpc, rowBytes: (width*cs.n*bpc + 7) / 8}
	maxV := float64(int(1)<<uint(min(bpc, 8)) - 1)

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	comps := make([]float64, cs.n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < cs.n; c++ {
				comps[c] = float64(r.at(y, x*cs.n+c))
			}
			var rgb [3]float64
			if cs.base != nil {
				rgb = cs.lookup(int(comps[0]))
			} else {
				for c := range comps {
					comps[c] /= maxV
				}
				rgb = cs.toRGB(comps)
			}
			img.SetNRGBA(x, y, nrgba(rgb, 255))
		}
	}
	return img, nil
}

func (cs colorSpace) toRGB(c []float64) [3]float64 {
	switch cs.n {
	case 3:
		return [3]float64{clamp01(c[0]), clamp01(c[1]), clamp01(c[2])}
	case 4:
		return cmykToRGB(c[0], c[1], c[2], c[3])
	}
	v := clamp01(c[0])
	if cs.inverted {
		v = 1 - v
	}
	return [3]float64{v, v, v}
}

func (cs colorSpace) lookup(index int) [3]float64 {
	if index > cs.hival {
		index = cs.hival
	}
	n := cs.base.n
	off := index * n
	if index < 0 || off+n > len(cs.palette) {
		return [3]float64{}
	}
	comps := make([]float64, n)
	for i := range comps {
		comps[i] = float64(cs.palette[off+i]) / 255
	}
	return cs.base.toRGB(comps)
}

// decodeInverted 模板蒙版的 /Decode [1 0] 反转取样含义
func decodeInverted(xt *model.XRefTable, d types.Dict) bool {
	arr, err := xt.DereferenceArray(d["Decode"])
	if err != nil || len(arr) < 1 {
		return false
	}
	v, ok := number(xt, arr[0])
	return ok && v == 1
}

// stencil 取样为 0 的位置以填充色绘制，其余透明
func stencil(data []byte, width, height int, inverted bool, fill [3]float64) *image.NRGBA {
	r := sampleReader{data: data, bpc: 1, rowBytes: (width + 7) / 8}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	ink := nrgba(fill, 255)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			painted := r.at(y, x) == 0
			if inverted {
				painted = !painted
			}
			if painted {
				img.SetNRGBA(x, y, ink)
			}
		}
	}
	return img
}

// applySoftMask 用 SMask 灰度图替换 alpha；尺寸不同时按最近邻采样
func applySoftMask(xt *model.XRefTable, img image.Image, obj types.Object) (*image.NRGBA, error) {
	o, err := xt.Dereference(obj)
	if err != nil {
		return nil, err
	}
	sd, ok := o.(types.StreamDict)
	if !ok {
		return nil, fmt.Errorf("%w: soft mask %T", ErrUnsupportedImage, o)
	}
	if err := sd.Decode(); err != nil {
		return nil, err
	}
	mw, _ := number(xt, sd.Dict["Width"])
	mh, _ := number(xt, sd.Dict["Height"])
	if mw < 1 || mh < 1 || mw*mh > maxImagePixels {
		return nil, fmt.Errorf("%w: soft mask size %vx%v", ErrUnsupportedImage, mw, mh)
	}
	bpc := 8
	if v, ok := number(xt, sd.Dict["BitsPerComponent"]); ok {
		bpc = int(v)
	}
	mask, err := rasterSamples(sd.Content, int(mw), int(mh), bpc, colorSpace{n: 1})
	if err != nil {
		return nil, err
	}

	dst := imaging.ToNRGBA(img)
	b, mb := dst.Bounds(), mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		my := y * mb.Dy() / b.Dy()
		for x := 0; x < b.Dx(); x++ {
			mx := x * mb.Dx() / b.Dx()
			c := dst.NRGBAAt(x, y)
			c.A = mask.NRGBAAt(mx, my).R
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst, nil
}
